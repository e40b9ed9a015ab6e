package snapshotsvc

import (
	"bytes"
	"image"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core/attendance"
)

const defaultQuality = 85

// Writer saves frames of the recognition feed as image files.
// The format follows the file extension: .jpg, .jpeg, .png, .gif, .bmp, .tif, .tiff or .webp.
type Writer struct {
	MaxWidth int // downscale wider frames, keeping the aspect ratio; 0 keeps the original size
	Quality  int // JPEG and lossy WebP quality, 1-100
}

// Decode decodes the image data of f.
func Decode(f attendance.Frame) (image.Image, error) {
	if len(f.Data) == 0 {
		return nil, errors.New("empty frame")
	}
	img, err := imaging.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding frame %d", f.Seq)
	}
	return img, nil
}

// Encode writes f to dst in the given format (a file extension such as ".png").
func (w Writer) Encode(dst io.Writer, f attendance.Frame, ext string) error {
	img, err := Decode(f)
	if err != nil {
		return err
	}
	if w.MaxWidth > 0 && img.Bounds().Dx() > w.MaxWidth {
		img = imaging.Resize(img, w.MaxWidth, 0, imaging.Lanczos)
	}

	quality := w.Quality
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	ext = strings.ToLower(ext)
	if ext == ".webp" {
		return errors.Wrap(webp.Encode(dst, img, &webp.Options{Quality: float32(quality)}), "encoding webp")
	}
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return errors.Wrapf(err, "snapshot format %q", ext)
	}
	return errors.Wrapf(imaging.Encode(dst, img, format, imaging.JPEGQuality(quality)), "encoding %s", format)
}

// Save writes f to path, replacing any existing file only once encoding succeeded.
func (w Writer) Save(path string, f attendance.Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating snapshot dir")
	}
	tmp, err := ioutil.TempFile(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return errors.Wrap(err, "creating snapshot file")
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if err := w.Encode(tmp, f, filepath.Ext(path)); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "saving snapshot")
}
