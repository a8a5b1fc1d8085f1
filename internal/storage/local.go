package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// LocalUploader пишет файлы в каталог, который раздается как /uploads
type LocalUploader struct {
	dir       string
	urlPrefix string
}

func NewLocalUploader(dir, urlPrefix string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &LocalUploader{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir возвращает каталог для раздачи статики
func (u *LocalUploader) Dir() string {
	return u.dir
}

func (u *LocalUploader) Save(_ context.Context, name, _ string, r io.Reader) (string, error) {
	name = filepath.Base(name)
	f, err := os.OpenFile(filepath.Join(u.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}
	return path.Join(u.urlPrefix, name), nil
}

// Delete удаляет файл по URL; отсутствие файла ошибкой не считается
func (u *LocalUploader) Delete(_ context.Context, url string) error {
	name := path.Base(url)
	if err := os.Remove(filepath.Join(u.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete upload file: %w", err)
	}
	return nil
}
