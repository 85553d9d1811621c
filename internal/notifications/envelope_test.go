package notifications

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

func TestParseEnvelope_ObjectPayload(t *testing.T) {
	user := account.NewUserID()
	data := []byte(`{
		"contextId": "app-42",
		"type": 1,
		"payload": {"id": "c1", "userId": "` + string(user) + `", "revisionDate": "2026-08-01T10:00:00Z"}
	}`)

	env, err := ParseEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, "app-42", env.OriginAppID)
	require.Equal(t, TypeSyncCipherUpdate, env.Type)
	require.Equal(t, "c1", env.Payload.ID)
	require.Equal(t, user, env.Payload.UserID)
	require.Equal(t, "2026-08-01T10:00:00Z", env.Payload.RevisionDate)
	require.Empty(t, env.Payload.Raw)
}

func TestParseEnvelope_StringWrappedPayload(t *testing.T) {
	// Some transports deliver the payload as a JSON string containing JSON.
	data := []byte(`{"ContextId": "app-42", "Type": 3, "Payload": "{\"Id\": \"f7\"}"}`)

	env, err := ParseEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, TypeSyncFolderCreate, env.Type)
	require.Equal(t, "f7", env.Payload.ID)
}

func TestParseEnvelope_PascalCaseKeys(t *testing.T) {
	user := account.NewUserID()
	data := []byte(`{"ContextId": "x", "Type": 10, "Payload": {"UserId": "` + string(user) + `"}}`)

	env, err := ParseEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, "x", env.OriginAppID)
	require.Equal(t, TypeLogOut, env.Type)
	require.Equal(t, user, env.Payload.UserID)
}

func TestParseEnvelope_UnparseablePayloadKeptRaw(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type": 16, "payload": "not json at all"}`))
	require.NoError(t, err)
	require.Equal(t, TypeAuthRequest, env.Type)
	require.Equal(t, "not json at all", env.Payload.Raw)
	require.Empty(t, env.Payload.ID)
}

func TestParseEnvelope_NullAndMissingPayload(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type": 6, "payload": null}`))
	require.NoError(t, err)
	require.Equal(t, TypeSyncVault, env.Type)
	require.Equal(t, Payload{}, env.Payload)

	env, err = ParseEnvelope([]byte(`{"type": 6}`))
	require.NoError(t, err)
	require.Equal(t, Payload{}, env.Payload)
}

func TestParseEnvelope_Malformed(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{`))
	require.Error(t, err)
}

func TestTypeValuesAreWireStable(t *testing.T) {
	// The numeric values are the wire protocol; a reorder here would
	// silently misroute every notification.
	require.EqualValues(t, 0, TypeSyncCipherCreate)
	require.EqualValues(t, 6, TypeSyncVault)
	require.EqualValues(t, 10, TypeLogOut)
	require.EqualValues(t, 14, TypeSyncCiphers)
	require.EqualValues(t, 15, TypeSyncLoginDelete)
	require.EqualValues(t, 16, TypeAuthRequest)
	require.EqualValues(t, 19, TypeSyncOrganizationCollectionSettingChanged)
}
