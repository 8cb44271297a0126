package handlers

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"campusvote/models"
	"campusvote/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rate limiting and expiry settings for reset codes
const (
	maxAttemptsPerEmail = 3
	maxAttemptsPerIP    = 10
	rateLimitWindow     = 30 * time.Minute
	emailCooldown       = time.Minute
	codeTTL             = 15 * time.Minute
	codeLength          = 6
	maxCodeGuesses      = 5
)

var errUnknownSession = errors.New("invalid or expired session")

// ResetCodeInfo stores password reset information
type ResetCodeInfo struct {
	Email     string
	Code      string
	CreatedAt time.Time
	SessionID string
	Guesses   int
}

// PasswordResetRequest represents the request to reset a password
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyCodeRequest represents the request to verify a reset code
type VerifyCodeRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// ResetPasswordRequest represents the request to set a new password
type ResetPasswordRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// PasswordReset runs the emailed-code password reset flow for admins and
// voters. Codes and rate limits live in memory.
type PasswordReset struct {
	db     *gorm.DB
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	codes         map[string]ResetCodeInfo
	emailAttempts map[string][]time.Time
	ipAttempts    map[string][]time.Time
}

func NewPasswordReset(conn *gorm.DB, mailer Mailer, logger *slog.Logger) *PasswordReset {
	if logger == nil {
		logger = slog.Default()
	}
	return &PasswordReset{
		db:            conn,
		mailer:        mailer,
		logger:        logger,
		now:           time.Now,
		codes:         make(map[string]ResetCodeInfo),
		emailAttempts: make(map[string][]time.Time),
		ipAttempts:    make(map[string][]time.Time),
	}
}

// Run removes expired codes and rate limit entries every interval until ctx
// is done.
func (p *PasswordReset) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanup()
		}
	}
}

func (p *PasswordReset) cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for _, attempts := range []map[string][]time.Time{p.emailAttempts, p.ipAttempts} {
		for key, times := range attempts {
			recent := recentAttempts(times, now)
			if len(recent) == 0 {
				delete(attempts, key)
			} else {
				attempts[key] = recent
			}
		}
	}
	for sessionID, info := range p.codes {
		if now.Sub(info.CreatedAt) > codeTTL {
			delete(p.codes, sessionID)
		}
	}
	p.logger.Debug("password reset cleanup", "sessions", len(p.codes))
}

func recentAttempts(times []time.Time, now time.Time) []time.Time {
	var recent []time.Time
	for _, t := range times {
		if now.Sub(t) < rateLimitWindow {
			recent = append(recent, t)
		}
	}
	return recent
}

// checkRateLimit returns when the next attempt is allowed, or the zero time
// if the attempt may proceed. Allowed attempts are recorded.
func (p *PasswordReset) checkRateLimit(email, ip string) (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()

	emailTimes := recentAttempts(p.emailAttempts[email], now)
	if n := len(emailTimes); n > 0 && now.Sub(emailTimes[n-1]) < emailCooldown {
		next := emailTimes[n-1].Add(emailCooldown)
		return next, fmt.Errorf("too many attempts for this email, please wait %d seconds", int(next.Sub(now).Seconds()))
	}
	if len(emailTimes) >= maxAttemptsPerEmail {
		return emailTimes[0].Add(rateLimitWindow), errors.New("maximum password reset attempts reached for this email, please try again later")
	}
	ipTimes := recentAttempts(p.ipAttempts[ip], now)
	if len(ipTimes) >= maxAttemptsPerIP {
		return ipTimes[0].Add(rateLimitWindow), errors.New("too many password reset attempts from your location, please try again later")
	}

	p.emailAttempts[email] = append(emailTimes, now)
	p.ipAttempts[ip] = append(ipTimes, now)
	return time.Time{}, nil
}

// RequestPasswordReset emails a reset code to a registered admin or voter.
func (p *PasswordReset) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	clientIP := c.ClientIP()

	if next, err := p.checkRateLimit(email, clientIP); err != nil {
		p.logger.Warn("rate limited password reset", "email", email, "client_ip", clientIP)
		wait := int(next.Sub(p.now()).Seconds())
		if wait <= 0 {
			wait = 60
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "waitSeconds": wait})
		return
	}

	exists, err := p.accountExists(c.Request.Context(), email)
	if err != nil {
		p.logger.Error("failed to look up account for password reset", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "No account exists with this email address"})
		return
	}

	code, err := generateSecureCode(codeLength)
	if err != nil {
		p.logger.Error("failed to generate reset code", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate reset code"})
		return
	}
	info := ResetCodeInfo{
		Email:     email,
		Code:      code,
		CreatedAt: p.now(),
		SessionID: uuid.NewString(),
	}

	if err := p.mailer.SendResetCode(c.Request.Context(), email, code); err != nil {
		p.logger.Error("failed to send reset code", "email", email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send reset code email. Please try again later."})
		return
	}

	p.mu.Lock()
	p.codes[info.SessionID] = info
	p.mu.Unlock()

	p.logger.Info("password reset code sent", "email", email)
	c.JSON(http.StatusOK, gin.H{
		"message":   "Reset code sent to email",
		"sessionId": info.SessionID,
	})
}

// VerifyResetCode checks a code without consuming it.
func (p *PasswordReset) VerifyResetCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	info, status, err := p.checkCode(req.SessionID, req.Code)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Code verified successfully",
		"email":   info.Email,
	})
}

// ResetPassword sets a new password once the code checks out.
func (p *PasswordReset) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	info, status, err := p.checkCode(req.SessionID, req.Code)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		p.logger.Error("failed to hash password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}
	if err := p.updatePassword(c.Request.Context(), info.Email, hashedPassword); err != nil {
		p.logger.Error("failed to update password", "email", info.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}

	p.mu.Lock()
	delete(p.codes, req.SessionID)
	p.mu.Unlock()

	p.logger.Info("password reset", "email", info.Email)
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

func (p *PasswordReset) checkCode(sessionID, code string) (ResetCodeInfo, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, ok := p.codes[sessionID]
	if !ok {
		return info, http.StatusBadRequest, errUnknownSession
	}
	if p.now().Sub(info.CreatedAt) > codeTTL {
		delete(p.codes, sessionID)
		return info, http.StatusBadRequest, errors.New("verification code has expired")
	}
	if info.Code != code {
		info.Guesses++
		if info.Guesses >= maxCodeGuesses {
			delete(p.codes, sessionID)
		} else {
			p.codes[sessionID] = info
		}
		return info, http.StatusUnauthorized, errors.New("invalid verification code")
	}
	return info, http.StatusOK, nil
}

func (p *PasswordReset) accountExists(ctx context.Context, email string) (bool, error) {
	conn := p.db.WithContext(ctx)
	for _, model := range []any{&models.Admin{}, &models.Voter{}} {
		var n int64
		if err := conn.Model(model).Where("LOWER(email) = ?", email).Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// updatePassword sets the hash on every account registered with the email.
func (p *PasswordReset) updatePassword(ctx context.Context, email, hashedPassword string) error {
	var updated int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Admin{}, &models.Voter{}} {
			result := tx.Model(model).Where("LOWER(email) = ?", email).Update("password_hash", hashedPassword)
			if result.Error != nil {
				return result.Error
			}
			updated += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return err
	}
	if updated == 0 {
		return fmt.Errorf("no account found with email %s", email)
	}
	return nil
}

// generateSecureCode returns a uniformly random numeric code.
func generateSecureCode(length int) (string, error) {
	const digits = "0123456789"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		result[i] = digits[n.Int64()]
	}
	return string(result), nil
}
