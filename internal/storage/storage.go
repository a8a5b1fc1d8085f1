package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrNotImage - содержимое файла не распознано как изображение
var ErrNotImage = errors.New("only image uploads are allowed")

// Uploader сохраняет файл и возвращает URL, под которым он доступен.
// Delete принимает URL, ранее возвращенный Save
type Uploader interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// DetectImage определяет тип по содержимому, а не по расширению или заголовку клиента
func DetectImage(data []byte) (*mimetype.MIME, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mtype.String())
	}
	return mtype, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName строит имя вида <unix-millis>-<8 hex>-<очищенное исходное имя>.
// Случайная часть разводит одноименные загрузки в одну миллисекунду
func ObjectName(now time.Time, original string, mtype *mimetype.MIME) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "image"
		if mtype != nil {
			base += mtype.Extension()
		}
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), token, base)
}
