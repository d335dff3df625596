package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PAR 扫描件上限 10MB
const MaxDocumentSize = 10 << 20

var (
	ErrTooLarge   = errors.New("document exceeds size limit")
	ErrBadRef     = errors.New("invalid document ref")
	ErrNotFound   = errors.New("document not found")
)

// Document 打开的文档句柄，调用方负责 Close
type Document struct {
	io.ReadCloser
	Name string
	Size int64
}

// DocumentStore 外部 blob 协作方；ref 为存储内部的不透明引用
type DocumentStore interface {
	Save(ctx context.Context, dir, name string, r io.Reader) (ref string, err error)
	Open(ctx context.Context, ref string) (*Document, error)
	Remove(ctx context.Context, ref string) error
}

// FSStore 本地磁盘实现，ref 为相对 root 的路径
type FSStore struct{ root string }

func NewFSStore(root string) *FSStore { return &FSStore{root: root} }

// Save 先完整落盘再返回 ref；超限即删除残片
func (s *FSStore) Save(ctx context.Context, dir, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := filepath.Join(cleanComponent(dir), stampName(name))
	abs := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(abs)
	if err != nil {
		return "", err
	}
	// 多读 1 字节探测超限
	n, err := io.Copy(f, io.LimitReader(r, MaxDocumentSize+1))
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err == nil && n > MaxDocumentSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(abs)
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (s *FSStore) Open(ctx context.Context, ref string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Document{ReadCloser: f, Name: filepath.Base(abs), Size: st.Size()}, nil
}

func (s *FSStore) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := s.resolve(ref)
	if err != nil {
		return err
	}
	err = os.Remove(abs)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// resolve 拒绝越出 root 的引用
func (s *FSStore) resolve(ref string) (string, error) {
	if ref == "" {
		return "", ErrBadRef
	}
	rel := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrBadRef
	}
	return filepath.Join(s.root, rel), nil
}

func cleanComponent(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// stampName 原名 + 时间戳，避免重传覆盖；纳秒级避免同秒重传撞名
func stampName(name string) string {
	base := cleanComponent(strings.TrimSuffix(name, filepath.Ext(name)))
	ext := strings.ToLower(filepath.Ext(name))
	now := time.Now()
	return fmt.Sprintf("%s_%s_%09d%s", base, now.Format("20060102_150405"), now.Nanosecond(), ext)
}
