package docsource

import "context"

// MetaAuthorizer lets a document's owner, or any configured administrator,
// request detection.
type MetaAuthorizer struct {
	source Source
	admins map[string]struct{}
}

var _ Authorizer = (*MetaAuthorizer)(nil)

// NewMetaAuthorizer creates an authorizer reading ownership from source.
func NewMetaAuthorizer(source Source, adminIDs []string) *MetaAuthorizer {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &MetaAuthorizer{source: source, admins: admins}
}

// CanRequestDetection reports whether userID may run detection on documentID.
// A missing document is reported with the source's not-found error.
func (a *MetaAuthorizer) CanRequestDetection(ctx context.Context, userID, documentID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	meta, err := a.source.GetDocumentMeta(ctx, documentID)
	if err != nil {
		return false, err
	}
	if _, ok := a.admins[userID]; ok {
		return true, nil
	}
	return meta.OwnerID == userID, nil
}
