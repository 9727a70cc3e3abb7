// cmd/security/key_gen.go
package main

import (
	"fmt"
	"log"

	"custody-service/internal/security"
)

func main() {
	key, err := security.GenerateMasterKey()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==============================================")
	fmt.Println("Generated AES-256 wallet encryption key:")
	fmt.Println("==============================================")
	fmt.Println(key)
	fmt.Println("==============================================")
	fmt.Println("Add this to your .env file as:")
	fmt.Println("WALLET_ENCRYPTION_KEY=" + key)
	fmt.Println("==============================================")
	fmt.Println("KEEP THIS KEY SECURE!")
	fmt.Println("DO NOT COMMIT TO VERSION CONTROL!")
	fmt.Println("Losing it makes every stored wallet unrecoverable.")
	fmt.Println("==============================================")
}
