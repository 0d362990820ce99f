package downloads

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/plugsnip/snip-backend/errors"
)

// HandleDownload streams the asset a download token grants. Mounted at
// GET /downloads/{token}.
func (s *Service) HandleDownload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		errors.ErrMalformedURLParam.With("token is required").Write(w)
		return
	}
	asset, err := s.Resolve(token)
	if err != nil {
		switch err {
		case ErrInvalidToken:
			errors.ErrInvalidDownloadToken.Write(w)
		case ErrAssetNotFound:
			errors.ErrProductNotFound.Write(w)
		default:
			log.Error().Err(err).Msg("failed to resolve download")
			errors.ErrInternalStorageError.Write(w)
		}
		return
	}
	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", asset.Name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(asset.Data)))
	if _, err := w.Write(asset.Data); err != nil {
		log.Warn().Err(err).Msg("failed to write asset to response")
	}
}
