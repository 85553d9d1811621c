// Package notifications routes server-pushed change events to the right
// account: it models the notification envelope wire format, selects a
// transport per account (push subscription preferred, duplex hub as
// fallback), and dispatches typed events to sync collaborators.
package notifications

import (
	"encoding/json"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

// Type is the integer notification type enum. The numeric values are part
// of the wire protocol and must not be reordered.
type Type int

const (
	TypeSyncCipherCreate Type = iota
	TypeSyncCipherUpdate
	TypeSyncCipherDelete
	TypeSyncFolderCreate
	TypeSyncFolderUpdate
	TypeSyncFolderDelete
	TypeSyncVault
	TypeSyncOrganizations
	TypeSyncOrgKeys
	TypeSyncSettings
	TypeLogOut
	TypeSyncSendCreate
	TypeSyncSendUpdate
	TypeSyncSendDelete
	TypeSyncCiphers
	TypeSyncLoginDelete
	TypeAuthRequest
	TypeAuthRequestResponse
	TypeSyncOrganizationStatusChanged
	TypeSyncOrganizationCollectionSettingChanged
)

func (t Type) String() string {
	switch t {
	case TypeSyncCipherCreate:
		return "syncCipherCreate"
	case TypeSyncCipherUpdate:
		return "syncCipherUpdate"
	case TypeSyncCipherDelete:
		return "syncCipherDelete"
	case TypeSyncFolderCreate:
		return "syncFolderCreate"
	case TypeSyncFolderUpdate:
		return "syncFolderUpdate"
	case TypeSyncFolderDelete:
		return "syncFolderDelete"
	case TypeSyncVault:
		return "syncVault"
	case TypeSyncOrganizations:
		return "syncOrganizations"
	case TypeSyncOrgKeys:
		return "syncOrgKeys"
	case TypeSyncSettings:
		return "syncSettings"
	case TypeLogOut:
		return "logOut"
	case TypeSyncSendCreate:
		return "syncSendCreate"
	case TypeSyncSendUpdate:
		return "syncSendUpdate"
	case TypeSyncSendDelete:
		return "syncSendDelete"
	case TypeSyncCiphers:
		return "syncCiphers"
	case TypeSyncLoginDelete:
		return "syncLoginDelete"
	case TypeAuthRequest:
		return "authRequest"
	case TypeAuthRequestResponse:
		return "authRequestResponse"
	case TypeSyncOrganizationStatusChanged:
		return "syncOrganizationStatusChanged"
	case TypeSyncOrganizationCollectionSettingChanged:
		return "syncOrganizationCollectionSettingChanged"
	default:
		return "unknown"
	}
}

// Payload carries the typed fields the router cares about. Raw holds the
// original payload text when it could not be parsed as JSON; such envelopes
// are still delivered, just without structured fields.
type Payload struct {
	ID             string         `json:"id"`
	UserID         account.UserID `json:"userId"`
	OrganizationID string         `json:"organizationId"`
	RevisionDate   string         `json:"revisionDate"`
	Raw            string         `json:"-"`
}

// Envelope is one server-pushed notification. OriginAppID identifies the
// app instance that caused the change; envelopes originated by this process
// are self-echoes and get discarded.
type Envelope struct {
	OriginAppID string
	Type        Type
	Payload     Payload
}

// wireEnvelope mirrors the server JSON. Field matching is case-insensitive,
// so both `ContextId`/`contextId` and `UserId`/`userId` conventions decode.
type wireEnvelope struct {
	ContextID string          `json:"contextId"`
	Type      int             `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// ParseEnvelope decodes one wire notification. The payload may arrive as a
// JSON object or as a JSON string containing JSON; an unparseable payload is
// tolerated and kept verbatim in Payload.Raw.
func ParseEnvelope(data []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, err
	}
	return Envelope{
		OriginAppID: wire.ContextID,
		Type:        Type(wire.Type),
		Payload:     decodePayload(wire.Payload),
	}, nil
}

func decodePayload(raw json.RawMessage) Payload {
	if len(raw) == 0 || string(raw) == "null" {
		return Payload{}
	}

	// String payloads carry JSON one level deeper.
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		var p Payload
		if err := json.Unmarshal([]byte(inner), &p); err != nil {
			return Payload{Raw: inner}
		}
		return p
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{Raw: string(raw)}
	}
	return p
}
