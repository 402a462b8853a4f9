package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	for _, k := range []string{
		"PORT", "DB_PATH", "LOG_LEVEL", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY",
		"VAPID_SUBJECT", "VAPID_EMAIL", "FCM_CREDENTIALS_FILE", "FCM_CREDENTIALS_JSON",
		"GOOGLE_APPLICATION_CREDENTIALS",
	} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func setenv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBPath != "push.db" || cfg.APIBasePath != "/api/v1" || cfg.GinMode != "release" {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.RateRPS != 5 || cfg.RateBurst != 10 || cfg.DeliveryRateRPS != 50 || cfg.DeliveryRateBurst != 200 {
		t.Fatalf("rate defaults: %+v", cfg)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("idempotency ttl = %v", cfg.IdempotencyTTL)
	}

	p := cfg.Push
	if p.Web.Enabled() || p.FCM.Enabled() {
		t.Fatalf("channels must be off without credentials: %+v", p)
	}
	if p.Web.Subject != "mailto:admin@example.com" || p.Web.Urgency != "high" || p.Web.MaxAttempts != 1 || p.Web.TTL != 24*time.Hour {
		t.Fatalf("web defaults: %+v", p.Web)
	}
	if p.FCM.AndroidChannel != "messages" || p.FCM.Concurrency != 4 || p.FCM.MaxAttempts != 3 ||
		p.FCM.RetryBaseDelay != 100*time.Millisecond || p.FCM.SendTimeout != 10*time.Second {
		t.Fatalf("fcm defaults: %+v", p.FCM)
	}
	if p.Breaker.Threshold != 5 || p.Breaker.Timeout != time.Minute {
		t.Fatalf("breaker defaults: %+v", p.Breaker)
	}
	if p.DirectTruncate != 200 || p.GroupTruncate != 100 || p.DefaultIcon != "/icons/notification.png" {
		t.Fatalf("payload defaults: %+v", p)
	}
	if cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "localhost:4317" || !cfg.OTEL.Insecure || cfg.OTEL.SampleRatio != 1 {
		t.Fatalf("otel defaults: %+v", cfg.OTEL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setenv(t, map[string]string{
		"PORT":                        "8088",
		"READ_TIMEOUT":                "2s",
		"MAX_HEADER_BYTES":            "8192",
		"GIN_MODE":                    "weird",
		"LOG_LEVEL":                   "WARNING",
		"LOG_PRETTY":                  " yes ",
		"SWAGGER_ENABLED":             "on",
		"API_BASE_PATH":               "api/v2/",
		"RATE_RPS":                    "0.5",
		"RATE_DELIVERY_BURST":         "3",
		"CORS_ALLOWED_ORIGINS":        " https://a.com , , http://b ",
		"ENABLE_HSTS":                 "TRUE",
		"HSTS_MAX_AGE":                "24h",
		"IDEMPOTENCY_TTL":             "48h",
		"VAPID_PUBLIC_KEY":            " pub ",
		"VAPID_PRIVATE_KEY":           "priv",
		"VAPID_SUBJECT":               "ops@example.com",
		"WEBPUSH_URGENCY":             "NORMAL",
		"FCM_CREDENTIALS_JSON":        "{}",
		"MOBILE_PUSH_CONCURRENCY":     "8",
		"BREAKER_THRESHOLD":           "3",
		"BREAKER_TIMEOUT":             "30s",
		"OTEL_ENABLED":                "1",
		"OTEL_EXPORTER_OTLP_INSECURE": "off",
		"OTEL_TRACES_SAMPLER_ARG":     "0.25",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.MaxHeaderBytes != 8192 || cfg.GinMode != "release" {
		t.Fatalf("server: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs: %+v", cfg)
	}
	if cfg.RateRPS != 0.5 || cfg.RateBurst != 10 || cfg.DeliveryRateBurst != 3 {
		t.Fatalf("rates: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("origins: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour || cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("security: %+v ttl=%v", cfg.Security, cfg.IdempotencyTTL)
	}
	w := cfg.Push.Web
	if !w.Enabled() || w.PublicKey != "pub" || w.Subject != "mailto:ops@example.com" || w.Urgency != "normal" {
		t.Fatalf("web: %+v", w)
	}
	if !cfg.Push.FCM.Enabled() || cfg.Push.FCM.Concurrency != 8 {
		t.Fatalf("fcm: %+v", cfg.Push.FCM)
	}
	if cfg.Push.Breaker.Threshold != 3 || cfg.Push.Breaker.Timeout != 30*time.Second {
		t.Fatalf("breaker: %+v", cfg.Push.Breaker)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Insecure || cfg.OTEL.SampleRatio != 0.25 {
		t.Fatalf("otel: %+v", cfg.OTEL)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want []string
	}{
		{"unparsable number", map[string]string{"RATE_RPS": "x"}, []string{`RATE_RPS="x" is not a valid number`}},
		{"unparsable integer", map[string]string{"RATE_BURST": "nope"}, []string{`RATE_BURST="nope" is not a valid integer`}},
		{"unparsable boolean", map[string]string{"ENABLE_HSTS": "maybe"}, []string{"ENABLE_HSTS"}},
		{"unparsable duration", map[string]string{"BREAKER_TIMEOUT": "soon"}, []string{"BREAKER_TIMEOUT", "duration"}},
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, []string{"LOG_LEVEL"}},
		{"blank port", map[string]string{"PORT": "   "}, []string{"PORT must not be empty"}},
		{"blank db path", map[string]string{"DB_PATH": "  "}, []string{"DB_PATH must not be empty"}},
		{"zero timeout", map[string]string{"READ_TIMEOUT": "0s"}, []string{"timeouts must be positive"}},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, []string{"MAX_HEADER_BYTES"}},
		{"negative rps", map[string]string{"RATE_RPS": "-1"}, []string{"RATE_RPS must be >= 0"}},
		{"delivery burst", map[string]string{"RATE_DELIVERY_BURST": "0"}, []string{"RATE_DELIVERY_BURST"}},
		{"hsts age", map[string]string{"HSTS_MAX_AGE": "-1s"}, []string{"HSTS_MAX_AGE"}},
		{"idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, []string{"IDEMPOTENCY_TTL"}},
		{"sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, []string{"OTEL_TRACES_SAMPLER_ARG"}},
		{"lone vapid key", map[string]string{"VAPID_PUBLIC_KEY": "pub"}, []string{"must be set together"}},
		{"urgency", map[string]string{"WEBPUSH_URGENCY": "asap"}, []string{"WEBPUSH_URGENCY"}},
		{"web attempts", map[string]string{"WEBPUSH_MAX_ATTEMPTS": "0"}, []string{"WEBPUSH_MAX_ATTEMPTS"}},
		{"mobile attempts", map[string]string{"MOBILE_MAX_ATTEMPTS": "0"}, []string{"MOBILE_MAX_ATTEMPTS"}},
		{"concurrency", map[string]string{"MOBILE_PUSH_CONCURRENCY": "0"}, []string{"MOBILE_PUSH_CONCURRENCY"}},
		{"send timeout", map[string]string{"MOBILE_SEND_TIMEOUT": "0s"}, []string{"MOBILE_SEND_TIMEOUT"}},
		{"lookup timeout", map[string]string{"PUSH_LOOKUP_TIMEOUT": "0s"}, []string{"PUSH_LOOKUP_TIMEOUT"}},
		{"breaker threshold", map[string]string{"BREAKER_THRESHOLD": "0"}, []string{"BREAKER_THRESHOLD"}},
		{"truncation", map[string]string{"PUSH_GROUP_TRUNCATE": "0"}, []string{"PUSH_GROUP_TRUNCATE"}},
		{
			"every failure is reported",
			map[string]string{"RATE_RPS": "fast", "LOG_LEVEL": "loud", "BREAKER_THRESHOLD": "0"},
			[]string{"RATE_RPS", "LOG_LEVEL", "BREAKER_THRESHOLD"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setenv(t, tc.env)
			_, err := Load()
			if err == nil {
				t.Fatalf("Load accepted %v", tc.env)
			}
			for _, w := range tc.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q lacks %q", err, w)
				}
			}
		})
	}
}

func TestLoad_RenamedVariables(t *testing.T) {
	setenv(t, map[string]string{
		"VAPID_EMAIL":                    "push@example.com",
		"GOOGLE_APPLICATION_CREDENTIALS": "/etc/gcp/sa.json",
	})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Push.Web.Subject != "mailto:push@example.com" {
		t.Fatalf("subject = %q", cfg.Push.Web.Subject)
	}
	if cfg.Push.FCM.CredentialsFile != "/etc/gcp/sa.json" || !cfg.Push.FCM.Enabled() {
		t.Fatalf("credentials file = %q", cfg.Push.FCM.CredentialsFile)
	}

	t.Setenv("FCM_CREDENTIALS_FILE", "/etc/push/fcm.json")
	t.Setenv("VAPID_SUBJECT", "https://push.example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Push.FCM.CredentialsFile != "/etc/push/fcm.json" || cfg.Push.Web.Subject != "https://push.example.com" {
		t.Fatalf("current names must win: %+v", cfg.Push)
	}
}

func TestMustLoad(t *testing.T) {
	if cfg := MustLoad(); cfg.Port == "" {
		t.Fatal("empty config")
	}

	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad should panic on invalid config")
		}
	}()
	MustLoad()
}

func TestEnvReader_Bool(t *testing.T) {
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on"} {
		k := "CFG_TRUE_" + string(rune('A'+i))
		t.Setenv(k, v)
		var e envReader
		if !e.bool(k, false) || len(e.errs) != 0 {
			t.Errorf("bool(%q) should be true", v)
		}
	}
	for i, v := range []string{"0", "false", " no ", "N", "off"} {
		k := "CFG_FALSE_" + string(rune('A'+i))
		t.Setenv(k, v)
		var e envReader
		if e.bool(k, true) || len(e.errs) != 0 {
			t.Errorf("bool(%q) should be false", v)
		}
	}

	var e envReader
	t.Setenv("CFG_EMPTY", "")
	if !e.bool("CFG_EMPTY", true) || len(e.errs) != 0 {
		t.Fatal("empty should take the default silently")
	}
}

func Test_splitCSV_normalizeBasePath_normalizeSubject(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatal("splitCSV(\"\") should be nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV = %#v", got)
	}

	for in, want := range map[string]string{"": "/", " / ": "/", "v1": "/v1", "/v1/": "/v1"} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}

	for in, want := range map[string]string{
		"":                       "",
		" ops@example.com ":      "mailto:ops@example.com",
		"mailto:ops@example.com": "mailto:ops@example.com",
		"https://example.com":    "https://example.com",
	} {
		if got := normalizeSubject(in); got != want {
			t.Errorf("normalizeSubject(%q) = %q, want %q", in, got, want)
		}
	}
}
