// Package auth is the account core of the cleaning service: identities,
// credential checks, single use tokens, sessions and the account lifecycle.
// Social sign in lives in the social package and plugs in through
// LinkDeactivator.
//
// Identity store:
//   - User is persisted with Bun. Emails are normalized before every write and
//     lookup, phone numbers are stored in E.164 when they parse. Identities are
//     never hard deleted, AccountLifecycle deactivates them.
//
// Credentials:
//   - CredentialVerifier authenticates email identities and throttles repeated
//     failures. Unknown, inactive and social only identities all fail with
//     ErrInvalidCredentials so callers cannot probe for accounts.
//   - ChangePassword closes every session of the identity in the same
//     transaction that stores the new hash.
//
// Tokens:
//   - TokenManager issues email verification and password reset tokens. Only
//     the sha256 of a value is stored. Issuing invalidates every unused token of
//     the same kind, and Consume is a conditional update so a token can only be
//     used once even under concurrent requests.
//
// Sessions:
//   - SessionTracker caps active sessions per identity, oldest first out.
//
// Side effects:
//   - Notifier and ActivitySink run after the owning transaction committed.
//     Their failures are logged and never undo the operation.
package auth
