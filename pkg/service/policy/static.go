package policy

import (
	"context"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
)

// Wildcard grants a relation to every subject of one type, as in "user:*".
// It never covers the anonymous principal, which needs its own tuple.
const Wildcard = "*"

// Tuple is one relationship grant: user has relation on object
type Tuple struct {
	User     string `toml:"user"`
	Relation string `toml:"relation"`
	Object   string `toml:"object"`
}

// Validate checks that every part of the tuple is typed and present
func (t *Tuple) Validate() error {
	if t.User == "" || t.Relation == "" || t.Object == "" {
		return goerr.New("tuple requires user, relation and object",
			goerr.V("user", t.User),
			goerr.V("relation", t.Relation),
			goerr.V("object", t.Object),
		)
	}
	if !strings.Contains(t.User, ":") {
		return goerr.New("tuple user must be typed, e.g. user:alice", goerr.V("user", t.User))
	}
	if !strings.Contains(t.Object, ":") {
		return goerr.New("tuple object must be typed, e.g. doc:budget", goerr.V("object", t.Object))
	}
	return nil
}

// StaticConfig is the TOML document read by LoadStatic
type StaticConfig struct {
	Tuples []Tuple `toml:"tuple"`
}

type tupleKey struct {
	user     string
	relation string
	object   string
}

// Static decides from a fixed set of tuples held in memory. It never
// returns an error for a well-formed query.
type Static struct {
	tuples map[tupleKey]struct{}
}

var _ interfaces.PolicyDecisionPoint = &Static{}

// NewStatic builds a decision point granting exactly tuples
func NewStatic(tuples ...Tuple) (*Static, error) {
	s := &Static{tuples: make(map[tupleKey]struct{}, len(tuples))}
	for i := range tuples {
		if err := tuples[i].Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid tuple", goerr.V("index", i))
		}
		s.tuples[tupleKey{
			user:     tuples[i].User,
			relation: tuples[i].Relation,
			object:   tuples[i].Object,
		}] = struct{}{}
	}
	return s, nil
}

// LoadStatic reads tuples from a TOML file of [[tuple]] tables
func LoadStatic(path string) (*Static, error) {
	// #nosec G304 - path is provided by CLI flag
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", path))
	}

	var cfg StaticConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML policy", goerr.V("path", path))
	}

	s, err := NewStatic(cfg.Tuples...)
	if err != nil {
		return nil, goerr.Wrap(err, "policy validation failed", goerr.V("path", path))
	}
	return s, nil
}

// Len returns the number of distinct tuples
func (s *Static) Len() int {
	return len(s.tuples)
}

func (s *Static) Check(ctx context.Context, query model.AuthorizationQuery) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, goerr.Wrap(model.ErrPolicyUnavailable, "check canceled", goerr.V("cause", err.Error()))
	}

	key := tupleKey{
		user:     query.Principal,
		relation: query.Relation.String(),
		object:   query.Resource,
	}
	if _, ok := s.tuples[key]; ok {
		return true, nil
	}

	if query.Principal == model.AnonymousPrincipal.Subject() {
		return false, nil
	}
	if kind, _, ok := strings.Cut(query.Principal, ":"); ok {
		key.user = kind + ":" + Wildcard
		if _, ok := s.tuples[key]; ok {
			return true, nil
		}
	}

	return false, nil
}
