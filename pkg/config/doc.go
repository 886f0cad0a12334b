// Package config loads the inkwell server configuration.
//
// Sources, lowest precedence first:
//
//  1. built-in defaults (Default)
//  2. a YAML file named by INKWELL_CONFIG_FILE
//  3. INKWELL_* environment variables, including those read from a .env
//     file (INKWELL_ENV_FILE, default ".env") which never override variables
//     already set in the process environment
//
// Example YAML:
//
//	server:
//	  port: "8080"
//	  health_port: "9090"
//	database:
//	  driver: postgres
//	  url: postgres://inkwell@localhost/inkwell?sslmode=disable
//	identity:
//	  issuer_url: https://auth.example.com/
//	  client_id: inkwell
//	notify:
//	  mode: smtp
//	  client_url: https://app.example.com
//	  smtp:
//	    host: smtp.example.com
//	    from: no-reply@example.com
//	invitations:
//	  ttl: 168h
//	  schedule: "@hourly"
//	observability:
//	  log_level: info
//
// Watch re-reads the YAML file on change; the server uses it to apply a new
// log level without a restart.
package config
