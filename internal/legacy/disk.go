package legacy

import (
	"context"
	"errors"
	"io/fs"
	"sort"

	"github.com/peterbourgon/diskv/v3"
)

// DiskStore keeps one file per key under a base directory.
type DiskStore struct {
	d *diskv.Diskv
}

// NewDiskStore opens (lazily creating) a flat key directory at basePath.
func NewDiskStore(basePath string) *DiskStore {
	return &DiskStore{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: flatTransform,
		InverseTransform:  flatInverse,
		CacheSizeMax:      1024 * 1024, // 1MB
	})}
}

func flatTransform(key string) *diskv.PathKey {
	return &diskv.PathKey{Path: []string{}, FileName: key}
}

func flatInverse(pk *diskv.PathKey) string {
	return pk.FileName
}

func (s *DiskStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.d.Read(key)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func (s *DiskStore) Set(ctx context.Context, key string, value string) error {
	return s.d.Write(key, []byte(value))
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	err := s.d.Erase(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *DiskStore) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	for key := range s.d.Keys(ctx.Done()) {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, ctx.Err()
}

func (s *DiskStore) Clear(ctx context.Context) error {
	return s.d.EraseAll()
}
