package secret

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	refPrefix    = "secretref:"
	base64Prefix = "base64:"
)

// Resolver resolves secret references using registered providers.
//
// Values with the prefix "secretref:" are resolved via providers.
// Other values are returned after strict environment expansion.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. A strict resolver rejects empty results.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{
		providers: make(map[string]Provider),
		strict:    strict,
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// DefaultResolver returns a strict resolver with the env and file providers.
func DefaultResolver() *Resolver {
	return NewResolver(true, NewEnvProvider(), NewFileProvider())
}

// Register adds provider, replacing any provider of the same name.
func (r *Resolver) Register(provider Provider) {
	if r == nil || provider == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[provider.Name()] = provider
}

// ResolveValue expands environment variables in value and resolves it if it
// is a secret reference.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	var resolved string
	if name, ref, ok := ParseSecretRef(expanded); ok {
		resolved, err = r.resolveRef(ctx, name, ref)
		if err != nil {
			return "", err
		}
	} else {
		resolved = expanded
	}
	if r != nil && r.strict && resolved == "" {
		return "", ErrEmpty
	}
	return resolved, nil
}

// ResolveKey resolves value and decodes a "base64:" payload. An empty value
// yields a nil key.
func (r *Resolver) ResolveKey(ctx context.Context, value string) ([]byte, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	resolved, err := r.ResolveValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if enc, ok := strings.CutPrefix(resolved, base64Prefix); ok {
		key, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("secret: decode base64 key: %w", err)
		}
		return key, nil
	}
	return []byte(resolved), nil
}

// ParseSecretRef parses a reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	rest, ok := strings.CutPrefix(value, refPrefix)
	if !ok {
		return "", "", false
	}
	provider, ref, ok = strings.Cut(rest, ":")
	if !ok || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolveRef(ctx context.Context, name, ref string) (string, error) {
	var provider Provider
	if r != nil {
		provider = r.providers[name]
	}
	if provider == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return provider.Resolve(ctx, ref)
}
