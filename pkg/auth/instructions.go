package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes step-by-step instructions for finding the API token
func ShowTokenGuide(w io.Writer, kfURL string) {
	kfURL = NormalizeServer(kfURL)

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "KOBOTOOLBOX API TOKEN")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "kobomedia reads submissions through the KoboToolbox API and needs")
	fmt.Fprintln(w, "the API token of an account that can view the project's data.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Log in")
	fmt.Fprintf(w, "   Open %s and log in.\n", kfURL)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open your account settings")
	fmt.Fprintln(w, "   Click your avatar, then 'Account Settings', then 'Security'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Copy the API key")
	fmt.Fprintln(w, "   Press 'Display' next to API Key and copy the 40-character value.")
	fmt.Fprintf(w, "   It can also be fetched from %s/token/?format=json\n", kfURL)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SECURITY:")
	fmt.Fprintln(w, "   The token gives full access to your account's projects.")
	fmt.Fprintln(w, "   kobomedia keeps it in the system keychain, or in an encrypted file")
	fmt.Fprintln(w, "   when no keychain is available.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
}
