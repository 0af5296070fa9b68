// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation and hashing utilities.

# Account Tokens

Each account receives a random 24-byte (192-bit) token at registration:

	token, err := auth.GenerateAccountToken()

The token is returned to the client exactly once. Only its HMAC-SHA256
hash is stored:

	hash := auth.HashToken(token, salt)
	err := auth.ValidateToken(presented, hash, salt)

Because HashToken is deterministic, handlers look accounts up by the hash
of the presented X-Account-Token header.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

Bids record a privacy-preserving hash of the bidder's address:

	hash := auth.HashIP(ipAddress, salt)
*/
package auth
