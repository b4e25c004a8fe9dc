package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"license-engine/internal/licensing"
)

func generateKeys(output string) {
	privateKey, publicKey, err := licensing.GenerateKeys()
	if err != nil {
		log.Fatalf("Error generating keys: %v", err)
	}

	privateKeyFile := output + "_private_key.pem"
	if err := os.WriteFile(privateKeyFile, privateKey, 0600); err != nil {
		log.Fatalf("Error writing private key to file '%s': %v", privateKeyFile, err)
	}

	publicKeyFile := output + "_public_key.pem"
	if err := os.WriteFile(publicKeyFile, publicKey, 0644); err != nil {
		log.Fatalf("Error writing public key to file '%s': %v", publicKeyFile, err)
	}
}

type createOptions struct {
	privateKeyPath string
	days           int
	issuer         string
	customer       string
	tier           string
	features       string
	company        string
	contact        string
	machineID      string
	maxTenants     int64
	maxTasks       int64
	maxTokens      int64
}

func createLicense(opts createOptions) {
	privateKeyPem, err := os.ReadFile(opts.privateKeyPath)
	if err != nil {
		log.Fatalf("error reading private key file: %v", err)
	}

	var features []string
	for _, feature := range strings.Split(opts.features, ",") {
		if feature = strings.TrimSpace(feature); feature != "" {
			features = append(features, feature)
		}
	}

	limits := map[string]int64{}
	if opts.maxTenants > 0 {
		limits[licensing.LimitMaxTenants] = opts.maxTenants
	}
	if opts.maxTasks > 0 {
		limits[licensing.LimitMaxConcurrentTasks] = opts.maxTasks
	}
	if opts.maxTokens > 0 {
		limits[licensing.LimitMaxTokensPerMonth] = opts.maxTokens
	}

	now := time.Now().UTC()
	claims := licensing.Claims{
		Issuer:    opts.issuer,
		Subject:   opts.customer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.AddDate(0, 0, opts.days).Unix(),
		Tier:      licensing.Tier(opts.tier),
		Features:  features,
		Limits:    limits,
		MachineID: opts.machineID,
		Company:   opts.company,
		Contact:   opts.contact,
	}

	token, err := licensing.CreateToken(privateKeyPem, claims)
	if err != nil {
		log.Fatalf("Error creating license: %v", err)
	}

	fmt.Println(token)
}

func validateLicense(publicKeyPath, token, serverURL, cacheDir string) {
	publicKeyPem, err := os.ReadFile(publicKeyPath)
	if err != nil {
		log.Fatalf("error reading public key file: %v", err)
	}

	validator, err := licensing.NewValidator(licensing.Config{
		LicenseKey:   token,
		PublicKeyPEM: publicKeyPem,
		ServerURL:    serverURL,
		CacheDir:     cacheDir,
	})
	if err != nil {
		log.Fatalf("Failed to create license validator: %v", err)
	}

	result := validator.Validate(context.Background())

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Error encoding result: %v", err)
	}
	fmt.Println(string(output))

	if !result.Valid {
		os.Exit(1)
	}
}

func clearCache(cacheDir string) {
	store, err := licensing.NewFileStore(cacheDir, licensing.DefaultOfflineCacheDays*24*time.Hour)
	if err != nil {
		log.Fatalf("Error opening cache directory: %v", err)
	}

	if err := store.ClearAll(); err != nil {
		log.Fatalf("Error clearing cache: %v", err)
	}
}

func fingerprint() {
	fp, err := licensing.MachineFingerprint()
	if err != nil {
		log.Fatalf("Error deriving machine fingerprint: %v", err)
	}
	fmt.Println(fp)
}

func main() {
	keysArgs := flag.NewFlagSet("keys", flag.ExitOnError)
	output := keysArgs.String("output", "", "Name of output files for the generated keys")

	createArgs := flag.NewFlagSet("create", flag.ExitOnError)
	opts := createOptions{}
	createArgs.StringVar(&opts.privateKeyPath, "private-key", "", "Path to private key file")
	createArgs.IntVar(&opts.days, "days", 365, "Days until expiration")
	createArgs.StringVar(&opts.issuer, "issuer", "license-engine", "License issuer")
	createArgs.StringVar(&opts.customer, "customer", "", "Customer identifier")
	createArgs.StringVar(&opts.tier, "tier", string(licensing.TierStarter), "License tier (starter, professional, enterprise)")
	createArgs.StringVar(&opts.features, "features", "", "Comma-separated feature identifiers")
	createArgs.StringVar(&opts.company, "company", "", "Company name")
	createArgs.StringVar(&opts.contact, "contact", "", "Contact email")
	createArgs.StringVar(&opts.machineID, "machine-id", "", "Optional machine fingerprint binding")
	createArgs.Int64Var(&opts.maxTenants, "max-tenants", 0, "max_tenants limit (0 omits)")
	createArgs.Int64Var(&opts.maxTasks, "max-concurrent-tasks", 0, "max_concurrent_tasks limit (0 omits)")
	createArgs.Int64Var(&opts.maxTokens, "max-tokens-per-month", 0, "max_tokens_per_month limit (0 omits)")

	validateArgs := flag.NewFlagSet("validate", flag.ExitOnError)
	publicKey := validateArgs.String("public-key", "", "Path to public key file")
	token := validateArgs.String("license", "", "License token to validate")
	serverURL := validateArgs.String("server-url", "", "Optional license server URL")
	validateCacheDir := validateArgs.String("cache-dir", "", "Cache directory (defaults to the user cache dir)")

	cacheClearArgs := flag.NewFlagSet("cache-clear", flag.ExitOnError)
	cacheDir := cacheClearArgs.String("cache-dir", "", "Cache directory to clear")

	if len(os.Args) < 2 {
		log.Fatalf("expected 'keys', 'create', 'validate', 'cache-clear' or 'fingerprint' subcommands")
	}

	switch os.Args[1] {
	case "keys":
		if err := keysArgs.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Error parsing arguments: %v", err)
		}
		generateKeys(*output)
	case "create":
		if err := createArgs.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Error parsing arguments: %v", err)
		}
		createLicense(opts)
	case "validate":
		if err := validateArgs.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Error parsing arguments: %v", err)
		}
		validateLicense(*publicKey, *token, *serverURL, *validateCacheDir)
	case "cache-clear":
		if err := cacheClearArgs.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Error parsing arguments: %v", err)
		}
		clearCache(*cacheDir)
	case "fingerprint":
		fingerprint()
	default:
		log.Fatalf("unknown subcommand '%s'", os.Args[1])
	}
}
