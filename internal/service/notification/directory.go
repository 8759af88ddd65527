package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

// Directory resolves principals through the repository with a per-process cache.
type Directory struct {
	repo  repository.DirectoryRepository
	cache *cache.Cache
}

func NewDirectory(repo repository.DirectoryRepository, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (d *Directory) cached(key string, load func() (model.Principal, error)) (model.Principal, error) {
	if p, ok := d.cache.Get(key); ok {
		return p.(model.Principal), nil
	}
	p, err := load()
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(key, p)
	return p, nil
}

// Owner loads a static rule target.
func (d *Directory) Owner(ctx context.Context, t model.NotificationTarget) (model.Principal, error) {
	return d.cached(string(t.OwnerType)+":"+t.OwnerID, func() (model.Principal, error) {
		if t.OwnerType == model.OwnerUser {
			return d.repo.GetPerson(ctx, t.OwnerID)
		}
		return d.repo.GetGroup(ctx, t.OwnerID)
	})
}

// Resolve loads a principal referenced by id from a record field.
func (d *Directory) Resolve(ctx context.Context, id string) (model.Principal, error) {
	return d.cached("id:"+id, func() (model.Principal, error) {
		return d.repo.Resolve(ctx, id)
	})
}

// Target turns a dynamic field value into a recipient. Values that already
// carry an address or members are used directly; anything else is taken as
// a principal id. A nil value yields a target with no addresses.
func (d *Directory) Target(ctx context.Context, value interface{}) (Target, error) {
	var p model.Principal
	switch v := value.(type) {
	case nil:
		return Target{}, nil
	case model.HasAddress:
		p = v
	case model.ExpandsToMembers:
		p = v
	default:
		id := stringify(v)
		if id == "" {
			return Target{}, nil
		}
		resolved, err := d.Resolve(ctx, id)
		if err != nil {
			return Target{}, err
		}
		p = resolved
	}
	return targetOf(p), nil
}

func targetOf(p model.Principal) Target {
	switch v := p.(type) {
	case model.HasAddress:
		return Target{
			Key:       "person:" + v.Address() + "|" + v.DisplayName(),
			Name:      v.DisplayName(),
			Addresses: Addresses(v),
		}
	case model.ExpandsToMembers:
		return Target{
			Key:       "group:" + v.DisplayName(),
			Name:      v.DisplayName(),
			Addresses: Addresses(v),
		}
	}
	return Target{Key: "unknown:" + p.DisplayName(), Name: p.DisplayName()}
}

// Addresses returns a principal's own address, or the addresses of its direct
// members. Nested groups are not descended into and blank addresses are dropped.
func Addresses(p model.Principal) []string {
	var out []string
	switch v := p.(type) {
	case model.HasAddress:
		if v.Address() != "" {
			out = append(out, v.Address())
		}
	case model.ExpandsToMembers:
		for _, m := range v.Members() {
			if a, ok := m.(model.HasAddress); ok && a.Address() != "" {
				out = append(out, a.Address())
			}
		}
	}
	return out
}

// StaticAddresses expands a rule's static targets into a de-duplicated
// address list. Owners that no longer exist are reported through skipped.
func (d *Directory) StaticAddresses(ctx context.Context, targets []model.NotificationTarget) (addrs []string, skipped []string, err error) {
	for _, t := range targets {
		p, err := d.Owner(ctx, t)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				skipped = append(skipped, string(t.OwnerType)+" "+t.OwnerID)
				continue
			}
			return nil, nil, fmt.Errorf("failed to resolve %s %s: %w", t.OwnerType, t.OwnerID, err)
		}
		addrs = append(addrs, Addresses(p)...)
	}
	return dedupe(addrs), skipped, nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
