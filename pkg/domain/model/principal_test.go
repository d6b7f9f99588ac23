package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/domain/types"
)

func TestNewPrincipal(t *testing.T) {
	gt.Value(t, model.NewPrincipal("")).Equal(model.AnonymousPrincipal)
	gt.Value(t, model.NewPrincipal("   ")).Equal(model.AnonymousPrincipal)
	gt.Value(t, model.NewPrincipal(" alice ")).Equal(model.Principal("alice"))
	gt.Bool(t, model.NewPrincipal("").IsAnonymous()).True()
}

func TestPrincipal_Subject(t *testing.T) {
	gt.Value(t, model.Principal("alice").Subject()).Equal("user:alice")
	gt.Value(t, model.Principal("user:alice").Subject()).Equal("user:alice")
	gt.Value(t, model.Principal("group:finance#member").Subject()).Equal("group:finance#member")
	gt.Value(t, model.AnonymousPrincipal.Subject()).Equal("user:anonymous")
}

func TestNewDocumentViewQuery(t *testing.T) {
	q := model.NewDocumentViewQuery("user:alice", "budget-2023")
	gt.Value(t, q.Principal).Equal("user:alice")
	gt.Value(t, q.Resource).Equal("doc:budget-2023")
	gt.Value(t, q.Relation).Equal(types.RelationViewer)
}
