package common

// AccessTokenHeaderName is the query parameter key that carries the access
// token on outbound hub connections.
const AccessTokenHeaderName = "access_token"

// LogoutReasonVaultTimeout tags logouts triggered by the idle-timeout monitor.
const LogoutReasonVaultTimeout = "vaultTimeout"

// LogoutReasonNotification tags logouts triggered by a server push.
const LogoutReasonNotification = "logoutNotification"
