package middleware

import (
	"bytes"
	"crypto/subtle"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"marketplace-wallet-engine/config"
	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"
	"marketplace-wallet-engine/pkg/apperror"
	"marketplace-wallet-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// Header names for HMAC authentication of the settlement gateway
	HeaderAccessKey = "X-Gateway-Access-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"

	// Header carrying the static admin service token
	HeaderAdminToken = "X-Admin-Token"

	// Max timestamp drift allowed (60 seconds)
	maxTimestampDrift = 60 * time.Second

	// Nonce TTL (120 seconds)
	nonceTTL = 120 * time.Second

	// Context keys
	CtxAccountID    = "account_id"
	CtxCapabilities = "capabilities"
	CtxActor        = "actor"
)

// HMACAuth verifies HMAC-SHA256 signed requests from the payment gateway.
// There is a single gateway collaborator; its credentials come from config.
// Pipeline: Check access key -> Check timestamp -> Check nonce -> Verify
// signature.
func HMACAuth(
	cfg config.GatewayConfig,
	sigSvc ports.SignatureService,
	nonceStore ports.NonceStore,
	log zerolog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessKey := c.GetHeader(HeaderAccessKey)
		signature := c.GetHeader(HeaderSignature)
		timestampStr := c.GetHeader(HeaderTimestamp)
		nonce := c.GetHeader(HeaderNonce)

		if accessKey == "" || signature == "" || timestampStr == "" || nonce == "" {
			response.Error(c, apperror.ErrInvalidAccessKey())
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(accessKey), []byte(cfg.AccessKey)) != 1 {
			response.Error(c, apperror.ErrInvalidAccessKey())
			c.Abort()
			return
		}

		// Step 1: Timestamp check
		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			response.Error(c, apperror.ErrTimestampExpired())
			c.Abort()
			return
		}
		now := time.Now().Unix()
		if math.Abs(float64(now-timestamp)) > maxTimestampDrift.Seconds() {
			response.Error(c, apperror.ErrTimestampExpired())
			c.Abort()
			return
		}

		// Step 2: Nonce check
		isNew, err := nonceStore.CheckAndSet(c.Request.Context(), accessKey, nonce, nonceTTL)
		if err != nil {
			log.Warn().Err(err).Msg("nonce store error, allowing request")
		} else if !isNew {
			response.Error(c, apperror.ErrNonceUsed())
			c.Abort()
			return
		}

		// Step 3: Signature verification
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		canonical := sigSvc.BuildCanonicalString(
			c.Request.Method,
			c.Request.URL.Path,
			timestamp,
			nonce,
			string(bodyBytes),
		)

		if !sigSvc.Verify(cfg.SecretKey, canonical, signature) {
			response.Error(c, apperror.ErrInvalidSignature())
			c.Abort()
			return
		}

		c.Set(CtxActor, "gateway:"+accessKey)
		c.Next()
	}
}

// JWTAuth validates bearer tokens for seller routes and stores the account id
// and the token's capability list on the context.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		tokenStr := authHeader[7:]
		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxAccountID, claims.AccountID)
		c.Set(CtxCapabilities, claims.Capabilities)
		c.Set(CtxActor, "account:"+claims.AccountID.String())
		c.Next()
	}
}

// AdminAuth authenticates administrative routes. Two credentials are
// accepted: the static admin service token (Argon2id hash in config) or a
// bearer JWT whose capability list carries admin capabilities.
func AdminAuth(
	tokenSvc ports.TokenService,
	hashSvc ports.HashService,
	adminTokenHash string,
	log zerolog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken := c.GetHeader(HeaderAdminToken); adminToken != "" {
			if adminTokenHash == "" {
				response.Error(c, apperror.ErrInvalidToken())
				c.Abort()
				return
			}
			ok, err := hashSvc.Verify(adminToken, adminTokenHash)
			if err != nil {
				log.Error().Err(err).Msg("admin token hash verification failed")
				response.Error(c, apperror.InternalError(err))
				c.Abort()
				return
			}
			if !ok {
				response.Error(c, apperror.ErrInvalidToken())
				c.Abort()
				return
			}
			c.Set(CtxCapabilities, domain.AdminCapabilities())
			c.Set(CtxActor, "admin:service-token")
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}
		claims, err := tokenSvc.Validate(authHeader[7:])
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxAccountID, claims.AccountID)
		c.Set(CtxCapabilities, claims.Capabilities)
		c.Set(CtxActor, "admin:"+claims.AccountID.String())
		c.Next()
	}
}

// RequireCapability gates a route on one capability from the authenticated
// credential. Runs after JWTAuth or AdminAuth.
func RequireCapability(capability domain.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get(CtxCapabilities)
		if !exists {
			response.Error(c, apperror.ErrMissingCapability(string(capability)))
			c.Abort()
			return
		}
		caps, ok := raw.([]domain.Capability)
		if !ok || !domain.HasCapability(caps, capability) {
			response.Error(c, apperror.ErrMissingCapability(string(capability)))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": apperror.CodeInternal,
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
