// Command vapidkeys prints a fresh VAPID key pair in .env format for the push
// notification settings.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	subject := flag.String("subject", "mailto:admin@storyreel.app", "VAPID subject (mailto: or https: URL)")
	flag.Parse()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		log.Fatal("Failed to generate VAPID keys:", err)
	}

	fmt.Fprintln(os.Stderr, "Add these to your .env file:")
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
	fmt.Printf("VAPID_SUBJECT=%s\n", *subject)
}
