package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/smallbiznis/filmbilling/internal/entitlement/domain"
)

func (s *Server) GetUserFilm(c *gin.Context) {
	userID, err := parseUUIDParam(c, "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filmID, err := parseUUIDParam(c, "film_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	userFilm, err := s.entitlementSvc.Get(c.Request.Context(), userID, filmID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserFilmResponse(userFilm))
}

func (s *Server) MarkFilmAsWatched(c *gin.Context) {
	userID, err := parseUUIDParam(c, "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filmID, err := parseUUIDParam(c, "film_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	userFilm, err := s.entitlementSvc.MarkAsWatched(c.Request.Context(), userID, filmID)
	if errors.Is(err, entitlementdomain.ErrNotFound) {
		AbortWithError(c, errWatchTargetNotFound)
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserFilmResponse(userFilm))
}
