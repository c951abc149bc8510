package staging

import "errors"

// Confirm failure modes. The error surface distinguishes a token that no
// longer exists from a token that exists but was staged for a different
// entity, because the caller-facing recovery differs: expired means "run
// preview again", mismatch means "you confirmed the wrong record".
var (
	ErrConfirmExpired  = errors.New("confirmation token expired or already used")
	ErrConfirmMismatch = errors.New("confirmation token does not match entity")
)

// PreviewResult is the first-phase response: what the mutation would do,
// and the token the caller must echo back to make it happen.
type PreviewResult struct {
	RequiresConfirmation bool
	Preview              any
	ConfirmToken         string
	ExpiresInSeconds     int
}

// Coordinator runs the two-phase mutation protocol over a Cache. Handlers
// supply the domain work as callbacks: build computes the staged payload and
// its human-readable preview, execute applies a previously staged payload.
type Coordinator struct {
	cache *Cache
}

// NewCoordinator wraps the given cache. The cache may be shared across
// handlers; namespaces keep their tokens apart.
func NewCoordinator(cache *Cache) *Coordinator {
	return &Coordinator{cache: cache}
}

// Preview stages the payload produced by build and returns a confirm token.
// If build fails nothing is staged and the error is returned as-is.
func (c *Coordinator) Preview(namespace, entityID string, build func() (payload, preview any, err error)) (PreviewResult, error) {
	payload, preview, err := build()
	if err != nil {
		return PreviewResult{}, err
	}
	token := c.cache.Store(namespace, entityID, payload)
	return PreviewResult{
		RequiresConfirmation: true,
		Preview:              preview,
		ConfirmToken:         token,
		ExpiresInSeconds:     int(c.cache.TTL().Seconds()),
	}, nil
}

// Confirm consumes the token and, if it was staged for entityID, runs
// execute with the staged payload. The token is consumed before the entity
// check, so a mismatched confirm burns the token: the caller has to run
// preview again rather than retry the same token against other ids.
func (c *Coordinator) Confirm(namespace, entityID, token string, execute func(payload any) (any, error)) (any, error) {
	entry, ok := c.cache.Consume(namespace, token)
	if !ok {
		return nil, ErrConfirmExpired
	}
	if entry.EntityID != entityID {
		return nil, ErrConfirmMismatch
	}
	return execute(entry.Payload)
}
