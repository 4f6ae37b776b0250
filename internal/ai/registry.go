package ai

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

var ErrUnknownModel = errors.New("unknown model")

// Model is one entry of the model picker.
type Model struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Provider Provider `json:"-"`
}

// Registry holds the selectable models in registration order.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
	order  []string
	def    string
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Label turns a model id like "pro" or "open-router" into "Pro" / "Open Router".
func Label(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Register adds or replaces a model. The first registered model is the
// default until SetDefault says otherwise.
func (r *Registry) Register(id, label string, p Provider) {
	id = normalizeID(id)
	if label == "" {
		label = Label(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[id]; !exists {
		r.order = append(r.order, id)
	}
	r.models[id] = Model{ID: id, Label: label, Provider: p}
	if r.def == "" {
		r.def = id
	}
}

func (r *Registry) SetDefault(id string) error {
	id = normalizeID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	r.def = id
	return nil
}

func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// Get resolves a model id; an empty id means the default model.
func (r *Registry) Get(id string) (Model, error) {
	id = normalizeID(id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == "" {
		id = r.def
	}
	m, ok := r.models[id]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return m, nil
}

func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}
