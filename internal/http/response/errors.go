package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

var errEvaluatorDown = errors.New("answer evaluation is unavailable, try again")

// RespondServiceError maps the delivery error taxonomy onto HTTP. A duplicate
// terminal transition is not a client failure: it answers 200 with
// already_completed so clients can retry blindly.
func RespondServiceError(c *gin.Context, log *logger.Logger, err error) {
	switch {
	case err == nil:
		RespondError(c, http.StatusInternalServerError, "internal", nil)
	case apperrors.Is(err, apperrors.ErrAlreadyCompleted):
		RespondOK(c, gin.H{"already_completed": true, "message": err.Error()})
	case apperrors.Is(err, apperrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case apperrors.Is(err, apperrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case apperrors.Is(err, apperrors.ErrEvaluationUnavailable):
		c.Header("Retry-After", "5")
		RespondError(c, http.StatusServiceUnavailable, "evaluation_unavailable", errEvaluatorDown)
	default:
		if log != nil {
			log.Error("delivery request failed", "path", c.FullPath(), "error", err)
		}
		RespondError(c, http.StatusInternalServerError, "internal", nil)
	}
}
