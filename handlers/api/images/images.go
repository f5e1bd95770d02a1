package images

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/voidshard/compositor"
)

// MaxDocumentBytes caps the size of a layer stack document.
const MaxDocumentBytes = 1 << 20

// Service is the part of *compositor.Compositor the handlers use.
type Service interface {
	ImageFor(key string) (image.Image, error)
	ImageForStack(s *compositor.LayerStack) (image.Image, error)
	PathFor(key string) string
	Cache() *compositor.RenderCache
}

// PathResponse is returned by HandlePath.
type PathResponse struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

// Routes mounts the image handlers on r.
func Routes(r chi.Router, svc Service) {
	r.Delete("/", HandleClear(svc))
	r.Route("/{key}", func(r chi.Router) {
		r.Get("/", HandleGet(svc))
		r.Put("/", HandleRender(svc))
		r.Delete("/", HandleEvict(svc))
		r.Get("/path", HandlePath(svc))
	})
}

// HandleGet serves the PNG cached (or registered) under {key}.
func HandleGet(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			renderError(w, r, http.StatusBadRequest, "Image key is required")
			return
		}

		img, err := svc.ImageFor(key)
		if err != nil {
			fail(w, r, key, err)
			return
		}
		writePNG(w, key, img)
	}
}

// HandleRender reads a layer stack document from the body, renders it (or
// serves the cached copy) under {key} and registers it for later GETs.
func HandleRender(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			renderError(w, r, http.StatusBadRequest, "Image key is required")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				renderError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			logrus.WithError(err).WithField("key", key).Error("Failed to read request body")
			renderError(w, r, http.StatusInternalServerError, "Failed to read request body")
			return
		}
		defer r.Body.Close()

		stack, err := compositor.DecodeStack(body)
		if err != nil {
			fail(w, r, key, err)
			return
		}
		if stack.Key != key {
			renderError(w, r, http.StatusBadRequest, "Document key does not match URL key")
			return
		}
		if i, ok := pathSource(stack); ok {
			renderError(w, r, http.StatusBadRequest, fmt.Sprintf("Layer %d: file paths are not accepted, use image names", i))
			return
		}

		img, err := svc.ImageForStack(stack)
		if err != nil {
			fail(w, r, key, err)
			return
		}
		writePNG(w, key, img)
	}
}

// pathSource finds the first layer naming an image or mask by file path.
// Documents sent over HTTP may only use names, which resolve inside the image
// directory.
func pathSource(s *compositor.LayerStack) (int, bool) {
	for i, l := range s.Layers {
		if c, ok := l.Content().(compositor.ImageContent); ok && c.Source.Path != "" {
			return i, true
		}
		if m := l.Mask(); m != nil && m.Source.Path != "" {
			return i, true
		}
	}
	return 0, false
}

// HandlePath reports where {key} is persisted.
func HandlePath(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		render.JSON(w, r, &PathResponse{Key: key, Path: svc.PathFor(key)})
	}
}

// HandleEvict drops {key} from both cache tiers.
func HandleEvict(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if err := svc.Cache().Evict(key); err != nil {
			fail(w, r, key, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleClear drops everything from both cache tiers.
func HandleClear(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Cache().Clear(); err != nil {
			fail(w, r, "", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// statusFor maps compositor errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, compositor.ErrCacheMiss):
		return http.StatusNotFound
	case errors.Is(err, compositor.ErrMalformedLayer),
		errors.Is(err, compositor.ErrInvalidColor),
		errors.Is(err, compositor.ErrInvalidGradientKind),
		errors.Is(err, compositor.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, compositor.ErrImageDecodeFailed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, r *http.Request, key string, err error) {
	status := statusFor(err)
	log := logrus.WithError(err).WithField("key", key)
	if status >= http.StatusInternalServerError {
		log.Error("Image request failed")
	} else {
		log.Warn("Image request rejected")
	}
	renderError(w, r, status, err.Error())
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func writePNG(w http.ResponseWriter, key string, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to encode image")
	}
}
