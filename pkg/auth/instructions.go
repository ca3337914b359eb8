package auth

import (
	"fmt"
	"strings"
)

// ShowLoginGuide displays instructions for authenticating against Ring
func ShowLoginGuide() {
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("RING AUTHENTICATION GUIDE")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()

	fmt.Println("This tool signs in with your Ring account credentials and keeps only")
	fmt.Println("the resulting refresh token. Your password is never stored.")
	fmt.Println()

	fmt.Println("STEP 1: Run the login command")
	fmt.Println("   ringhist auth login")
	fmt.Println("   You will be prompted for your Ring email and password.")
	fmt.Println()

	fmt.Println("STEP 2: Complete two-factor verification")
	fmt.Println("   If your account has 2FA enabled (recommended), Ring sends a")
	fmt.Println("   verification code by SMS or email. Enter it when prompted.")
	fmt.Println()

	fmt.Println("STEP 3: Done")
	fmt.Println("   The refresh token is stored in your system keychain, or an")
	fmt.Println("   encrypted file when no keychain is available.")
	fmt.Println()

	fmt.Println("Alternatively, set RINGHIST_REFRESH_TOKEN in the environment to")
	fmt.Println("skip interactive login entirely (useful for scripts and CI).")
	fmt.Println()

	fmt.Println("SECURITY:")
	fmt.Println("   The refresh token grants full access to your Ring account.")
	fmt.Println("   Never share it or commit it to version control.")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()
}
