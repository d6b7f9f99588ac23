package model

import "github.com/secmon-lab/ragguard/pkg/domain/types"

// AuthorizationQuery is a single question to the policy decision point.
// It is built per candidate document and never cached.
type AuthorizationQuery struct {
	Principal string
	Resource  string
	Relation  types.Relation
}

// NewDocumentViewQuery builds the viewer check for one document
func NewDocumentViewQuery(principal Principal, id DocumentID) AuthorizationQuery {
	return AuthorizationQuery{
		Principal: principal.Subject(),
		Resource:  DocumentResource(id),
		Relation:  types.RelationViewer,
	}
}

// DocumentResource returns the policy resource name of a document
func DocumentResource(id DocumentID) string {
	return types.ResourceKindDocument.String() + ":" + id.String()
}
