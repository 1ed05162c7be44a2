package server

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/uledev/taskchain/internal/crypto/envelope"
	"github.com/uledev/taskchain/internal/errs"
	"github.com/uledev/taskchain/internal/limiter"
	"github.com/uledev/taskchain/internal/model"
)

const chainKeyContext = "chainKey"

type blobDTO struct {
	EncryptedString string    `json:"encryptedString"`
	CreatedAt       time.Time `json:"createdAt"`
}

type pullDTO struct {
	Message string   `json:"message"`
	Data    *blobDTO `json:"data"`
}

type messageDTO struct {
	Message string `json:"message"`
}

type pushDTO struct {
	EncryptedString string `json:"encryptedString"`
	CreatedAt       string `json:"createdAt"`
}

// authChain validates the Authorization header as a compressed secp256k1
// public key in hex. The key is the whole credential: it selects the blob
// and authorizes access to it.
func (s *Server) authChain(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
		if raw == "" {
			return c.JSON(http.StatusUnauthorized, messageDTO{Message: "missing chain key"})
		}
		keyBytes, err := hex.DecodeString(raw)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, messageDTO{Message: "chain key is not hex"})
		}
		if _, err := btcec.ParsePubKey(keyBytes); err != nil {
			return c.JSON(http.StatusUnauthorized, messageDTO{Message: "invalid chain key"})
		}
		c.Set(chainKeyContext, strings.ToLower(raw))
		return next(c)
	}
}

func (s *Server) getBlob(c echo.Context) error {
	key := c.Get(chainKeyContext).(string)

	blob, err := s.blobs.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return c.JSON(http.StatusNotFound, messageDTO{Message: "no data for chain"})
		}
		s.log.Error("get blob", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, messageDTO{Message: "storage error"})
	}
	return c.JSON(http.StatusOK, pullDTO{
		Message: "ok",
		Data:    &blobDTO{EncryptedString: blob.EncryptedString, CreatedAt: blob.CreatedAt},
	})
}

func (s *Server) putBlob(c echo.Context) error {
	key := c.Get(chainKeyContext).(string)
	ctx := c.Request().Context()

	allowed, retry, err := s.lim.Allow(ctx, limiter.HashKey(key))
	if err != nil {
		s.log.Error("push limiter", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, messageDTO{Message: "storage error"})
	}
	if !allowed {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
		return c.JSON(http.StatusTooManyRequests, messageDTO{Message: "too many pushes"})
	}

	var body pushDTO
	if err := c.Bind(&body); err != nil || body.EncryptedString == "" {
		return c.JSON(http.StatusBadRequest, messageDTO{Message: "invalid body"})
	}
	createdAt, err := time.Parse(time.RFC3339Nano, body.CreatedAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageDTO{Message: "invalid createdAt"})
	}

	// The server cannot decrypt, but it can insist the envelope is well
	// formed and claims the authenticated chain.
	env, err := envelope.Decode(body.EncryptedString)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageDTO{Message: "invalid envelope"})
	}
	if !strings.EqualFold(env.PublicKey, key) {
		return c.JSON(http.StatusBadRequest, messageDTO{Message: "envelope chain mismatch"})
	}

	err = s.blobs.Put(ctx, model.Blob{
		PublicKey:       key,
		EncryptedString: body.EncryptedString,
		CreatedAt:       createdAt.UTC(),
	})
	if err != nil {
		s.log.Error("put blob", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, messageDTO{Message: "storage error"})
	}
	return c.JSON(http.StatusOK, messageDTO{Message: "ok"})
}
