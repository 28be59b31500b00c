package rodhost

import (
	"context"
	"fmt"

	"github.com/hazyhaar/tourguide/tourstate"
)

// WebStorage is a tourstate.Backend over the page's localStorage or
// sessionStorage, so tour state lives where the page's own scripts see it.
type WebStorage struct {
	page *Page
	area string
}

var _ tourstate.Backend = (*WebStorage)(nil)

// LocalStorage returns the durable Web Storage backend of p.
func LocalStorage(p *Page) *WebStorage { return &WebStorage{page: p, area: "localStorage"} }

// SessionStorage returns the session-scoped Web Storage backend of p.
func SessionStorage(p *Page) *WebStorage { return &WebStorage{page: p, area: "sessionStorage"} }

// Manager returns a tour state manager backed by p's Web Storage.
func (p *Page) Manager() *tourstate.Manager {
	return tourstate.NewManager(LocalStorage(p), SessionStorage(p), p.logger)
}

func (s *WebStorage) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := s.page.page.Context(ctx).Eval(`(a, k) => window[a].getItem(k)`, s.area, key)
	if err != nil {
		return "", false, fmt.Errorf("rodhost: %s get %s: %w", s.area, key, err)
	}
	if res.Value.Nil() {
		return "", false, nil
	}
	return res.Value.Str(), true, nil
}

func (s *WebStorage) Set(ctx context.Context, key, value string) error {
	_, err := s.page.page.Context(ctx).Eval(`(a, k, v) => window[a].setItem(k, v)`, s.area, key, value)
	if err != nil {
		return fmt.Errorf("rodhost: %s set %s: %w", s.area, key, err)
	}
	return nil
}

func (s *WebStorage) Delete(ctx context.Context, key string) error {
	_, err := s.page.page.Context(ctx).Eval(`(a, k) => window[a].removeItem(k)`, s.area, key)
	if err != nil {
		return fmt.Errorf("rodhost: %s delete %s: %w", s.area, key, err)
	}
	return nil
}

func (s *WebStorage) Keys(ctx context.Context) ([]string, error) {
	res, err := s.page.page.Context(ctx).Eval(`(a) => Object.keys(window[a])`, s.area)
	if err != nil {
		return nil, fmt.Errorf("rodhost: %s keys: %w", s.area, err)
	}
	var keys []string
	for _, k := range res.Value.Arr() {
		keys = append(keys, k.Str())
	}
	return keys, nil
}
