package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/mirror"
)

const MaxImageBytes = 5 * 1024 * 1024

// InlineImageBytes bounds the data: URL Upload returns when it inlines an image.
var InlineImageBytes = int64(len("data:;base64,") + 32 + base64.StdEncoding.EncodedLen(MaxImageBytes))

const formOverhead = 64 * 1024

// AdminBodyLimit sizes admin write bodies so a record carrying an inline image, or any
// record the mirror could hold, reaches validation and the capacity guard.
func AdminBodyLimit(mirrorMax int) int64 {
	if mirrorMax <= 0 {
		mirrorMax = mirror.DefaultMaxBytes
	}
	return InlineImageBytes + int64(mirrorMax) + formOverhead
}

var imageFolders = map[string]bool{"propiedades": true, "banners": true, "eventos": true, "barrios": true}

type UploadResult struct {
	URL    string `json:"url"`
	Inline bool   `json:"inline"` // data: URL kept in the record instead of object storage
}

// ImageService stores uploaded images in the object store. With fallback enabled a failed
// upload degrades to an inline data: URL.
type ImageService struct {
	store    domain.ObjectStore
	fallback bool
	now      func() time.Time
}

func NewImageService(store domain.ObjectStore, fallback bool) *ImageService {
	return &ImageService{store: store, fallback: fallback, now: time.Now}
}

func (s *ImageService) Upload(ctx context.Context, folder, filename string, data []byte) (UploadResult, error) {
	verr := &domain.ValidationError{}
	if !imageFolders[folder] {
		verr.Add("folder", "carpeta no permitida")
	}
	if len(data) == 0 {
		verr.Add("file", "archivo vacío")
	} else if len(data) > MaxImageBytes {
		verr.Add("file", fmt.Sprintf("la imagen supera %d MB", MaxImageBytes/(1024*1024)))
	}
	ctype := http.DetectContentType(data)
	if len(data) > 0 && !strings.HasPrefix(ctype, "image/") {
		verr.Add("file", "el archivo no es una imagen")
	}
	if err := verr.OrNil(); err != nil {
		return UploadResult{}, err
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = strings.TrimPrefix(ctype, "image/")
	}
	object := folder + "/" + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + uuid.NewString() + "." + ext

	var err error
	if s.store != nil {
		var u string
		if u, err = s.store.Upload(ctx, object, ctype, data); err == nil {
			return UploadResult{URL: u}, nil
		}
	} else {
		err = fmt.Errorf("no object store configured")
	}
	if !s.fallback {
		return UploadResult{}, err
	}
	log.Warn().Err(err).Str("object", object).Msg("image upload failed, inlining as data URL")
	return UploadResult{URL: "data:" + ctype + ";base64," + base64.StdEncoding.EncodeToString(data), Inline: true}, nil
}
