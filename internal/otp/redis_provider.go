package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeTTL     = 5 * time.Minute
	maxAttempts = 5
	codePrefix  = "otp:v1:code:"
	triesPrefix = "otp:v1:tries:"
)

// RedisProvider is a self-hosted stand-in for the external SMS provider:
// it generates codes, keeps bcrypt hashes in Redis with a short TTL and an
// attempt cap, and hands delivery to a Notifier. Used in development and
// anywhere the third-party provider is not configured.
type RedisProvider struct {
	client   *redis.Client
	notifier Notifier
	codeLen  int
}

// NewRedisProvider builds the local provider. codeLen is the dispatched
// code length and must match the entry flow's slot count.
func NewRedisProvider(client *redis.Client, notifier Notifier, codeLen int) *RedisProvider {
	return &RedisProvider{client: client, notifier: notifier, codeLen: codeLen}
}

type redisChallenge struct {
	id string
}

func (c *redisChallenge) ID() string { return c.id }
func (c *redisChallenge) Close()     {}

// CreateChallenge returns a synthetic challenge; the local provider has no
// bot-mitigation requirement of its own.
func (p *RedisProvider) CreateChallenge(_ context.Context) (Challenge, error) {
	return &redisChallenge{id: uuid.NewString()}, nil
}

// SendCode generates a fresh code for the phone, replacing any previous one.
func (p *RedisProvider) SendCode(ctx context.Context, phone string, ch Challenge) (Confirmation, error) {
	if ch == nil {
		return nil, ErrChallengeFailed
	}

	code, err := p.generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, codePrefix+phone, hash, codeTTL)
	pipe.Del(ctx, triesPrefix+phone)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}

	if err := p.notifier.Deliver(ctx, phone, code); err != nil {
		return nil, fmt.Errorf("deliver code: %w", err)
	}

	return &redisConfirmation{provider: p, phone: phone}, nil
}

func (p *RedisProvider) generateCode() (string, error) {
	max := big.NewInt(10)
	buf := make([]byte, p.codeLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

type redisConfirmation struct {
	provider *RedisProvider
	phone    string
}

// Confirm checks the submitted code against the stored hash. The stored
// code is consumed on success and after too many wrong attempts.
func (c *redisConfirmation) Confirm(ctx context.Context, code string) (string, error) {
	p := c.provider

	hash, err := p.client.Get(ctx, codePrefix+c.phone).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCodeExpired
		}
		return "", fmt.Errorf("load code: %w", err)
	}

	tries, err := p.client.Incr(ctx, triesPrefix+c.phone).Result()
	if err != nil {
		return "", fmt.Errorf("count attempt: %w", err)
	}
	if tries == 1 {
		p.client.Expire(ctx, triesPrefix+c.phone, codeTTL)
	}
	if tries > maxAttempts {
		p.client.Del(ctx, codePrefix+c.phone, triesPrefix+c.phone)
		return "", ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		return "", ErrInvalidCode
	}

	p.client.Del(ctx, codePrefix+c.phone, triesPrefix+c.phone)
	return uuid.NewString(), nil
}
