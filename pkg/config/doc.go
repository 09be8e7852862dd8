// Package config defines the runtime configuration for the SDK: credentials,
// the inference host, Secret Network registry settings, voice endpoints,
// timeouts and the retry policy.
//
// # Basic Configuration
//
// Only an API key is needed for inference; everything else has a default:
//
//	cfg := &config.Config{APIKey: "YOUR_API_KEY"}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// # Profiles
//
// The SDK reads one of two environment naming schemes:
//
//	config.SecretAI - SECRET_AI_API_KEY, SECRET_AI_MAX_RETRIES, ..., SECRET_SDK_LOG_LEVEL
//	config.Claive   - CLAIVE_AI_API_KEY, CLAIVE_AI_MAX_RETRIES, ..., CLAIVE_SDK_LOG_LEVEL
//
// Both share SECRET_CHAIN_ID, SECRET_NODE_URL and SECRET_WORKER_SMART_CONTRACT.
//
//	cfg, err := config.FromEnv(config.SecretAI, os.LookupEnv)
//
// # Secret Network
//
// Model and URL discovery query a worker-management contract. The defaults
// point to the public registry on the pulsar-3 testnet:
//
//	ChainID:  "pulsar-3"
//	NodeURL:  "https://pulsar.lcd.secretnodes.com"
//	Contract: "secret18cy3cgnmkft3ayma4nr37wgtj4faxfnrnngrlq"
//
// # Timeouts and Retries
//
// Every outbound call is bounded by Timeouts.Request per attempt and retried
// on transient failures according to Retry:
//
//	cfg.Timeouts = config.Timeouts{Request: 60 * time.Second}
//	cfg.Retry = config.Retry{MaxRetries: config.Int(5), Jitter: config.Bool(true)}
//
// MaxRetries counts retries after the first call, so the default of 3 allows
// four attempts. Set it to config.Int(0) to disable retries.
//
// # Files
//
// Load reads the same settings from YAML:
//
//	api_key: "..."
//	timeouts:
//	  request: 45s
//	retry:
//	  max_retries: 2
//	  jitter: true
//
// Environment variables can be layered over a file with Merge.
package config
