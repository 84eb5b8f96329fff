package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Prints a fresh operator bearer token and the sha256 hash to store in
// the operators table.
func main() {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	token := hex.EncodeToString(bytes)
	hash := sha256.Sum256([]byte(token))

	fmt.Printf("token: %s\n", token)
	fmt.Printf("token_hash: %s\n", hex.EncodeToString(hash[:]))
}
