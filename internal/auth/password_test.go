package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	t.Run("Hash password successfully", func(t *testing.T) {
		password := "MySecurePassword123"
		hash, err := HashPassword(password, DefaultBcryptCost)
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, password, hash, "Hash should not equal plaintext password")
	})

	t.Run("Hash produces different results each time", func(t *testing.T) {
		password := "MySecurePassword123"
		hash1, err := HashPassword(password, DefaultBcryptCost)
		require.NoError(t, err)

		hash2, err := HashPassword(password, DefaultBcryptCost)
		require.NoError(t, err)

		assert.NotEqual(t, hash1, hash2, "Multiple hashes of same password should be different due to salt")
	})

	t.Run("Zero cost uses the default work factor", func(t *testing.T) {
		hash, err := HashPassword("TestPassword123", 0)
		require.NoError(t, err)

		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, DefaultBcryptCost, cost)
	})

	t.Run("Explicit cost is honored", func(t *testing.T) {
		hash, err := HashPassword("TestPassword123", bcrypt.MinCost)
		require.NoError(t, err)

		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.MinCost, cost)
	})

	t.Run("Hash long password", func(t *testing.T) {
		// Bcrypt has a 72 byte limit, so use a password within that limit
		password := strings.Repeat("a", 70)
		hash, err := HashPassword(password, bcrypt.MinCost)
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
	})
}

func TestVerifyPassword(t *testing.T) {
	t.Run("Verify correct password", func(t *testing.T) {
		password := "MySecurePassword123"
		hash, err := HashPassword(password, bcrypt.MinCost)
		require.NoError(t, err)

		err = VerifyPassword(password, hash)
		assert.NoError(t, err)
	})

	t.Run("Verify wrong password", func(t *testing.T) {
		hash, err := HashPassword("MySecurePassword123", bcrypt.MinCost)
		require.NoError(t, err)

		err = VerifyPassword("WrongPassword123", hash)
		assert.Error(t, err)
		assert.Equal(t, bcrypt.ErrMismatchedHashAndPassword, err)
	})

	t.Run("Verify with case sensitivity", func(t *testing.T) {
		hash, err := HashPassword("MySecurePassword123", bcrypt.MinCost)
		require.NoError(t, err)

		err = VerifyPassword("mysecurepassword123", hash)
		assert.Error(t, err)
	})

	t.Run("Verify with invalid hash", func(t *testing.T) {
		err := VerifyPassword("password", "invalid-hash")
		assert.Error(t, err)
	})
}

func TestValidatePasswordStrength(t *testing.T) {
	t.Run("Valid password", func(t *testing.T) {
		err := ValidatePasswordStrength("MyPassword123")
		assert.NoError(t, err)
	})

	t.Run("Password too short", func(t *testing.T) {
		err := ValidatePasswordStrength("Pass1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "at least 8 characters")
	})

	t.Run("Password missing number", func(t *testing.T) {
		err := ValidatePasswordStrength("MyPassword")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "at least one number")
	})

	t.Run("Password missing letter", func(t *testing.T) {
		err := ValidatePasswordStrength("12345678")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "at least one letter")
	})

	t.Run("Empty password", func(t *testing.T) {
		err := ValidatePasswordStrength("")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "at least 8 characters")
	})

	t.Run("Password with only special characters", func(t *testing.T) {
		err := ValidatePasswordStrength("!@#$%^&*()")
		assert.Error(t, err)
	})
}

func TestHashAndVerifyPassword_RoundTrip(t *testing.T) {
	testCases := []struct {
		name     string
		password string
	}{
		{"Simple password", "Password123"},
		{"With special chars", "P@ssw0rd!123"},
		{"Long password", "ThisIsAVeryLongPasswordWithNumbers123456789"},
		{"With spaces", "My Secret Password 123"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := HashPassword(tc.password, bcrypt.MinCost)
			require.NoError(t, err)

			err = VerifyPassword(tc.password, hash)
			assert.NoError(t, err, "Should verify correct password")

			err = VerifyPassword(tc.password+"wrong", hash)
			assert.Error(t, err, "Should reject incorrect password")
		})
	}
}
