package flags

import (
	"github.com/ruteri/tdf-pipeline/config"
	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/urfave/cli/v2"
)

var PlatformEndpointFlag = &cli.StringFlag{
	Name:    "platform-endpoint",
	Usage:   "platform endpoint in gRPC compatible form, e.g. platform.example.com:443",
	EnvVars: []string{"PLATFORM_ENDPOINT"},
}
var ClientIDFlag = &cli.StringFlag{
	Name:    "client-id",
	Usage:   "platform client id",
	EnvVars: []string{"CLIENT_ID"},
}
var ClientSecretFlag = &cli.StringFlag{
	Name:    "client-secret",
	Usage:   "platform client secret",
	EnvVars: []string{"CLIENT_SECRET"},
}
var PlaintextFlag = &cli.BoolFlag{
	Name:    "plaintext",
	Value:   false,
	Usage:   "connect to the platform without TLS",
	EnvVars: []string{"PLATFORM_PLAINTEXT"},
}
var TrustStoreFlag = &cli.StringFlag{
	Name:    "trust-store",
	Usage:   "path to a PEM bundle of CA certificates trusted for the platform connection",
	EnvVars: []string{"PLATFORM_TRUST_STORE"},
}
var KasURLFlag = &cli.StringFlag{
	Name:    "kas-url",
	Usage:   "default KAS endpoint, used for items without a kas_url attribute; ${VAR} is expanded",
	EnvVars: []string{"KAS_URL"},
}
var SignAssertionsFlag = &cli.BoolFlag{
	Name:    "sign-assertions",
	Value:   false,
	Usage:   "sign ZTDF assertions with the configured private key",
	EnvVars: []string{"SIGN_ASSERTIONS"},
}
var PrivateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	Usage:   "assertion signing key: file:///path/key.pem or vault://host:8200/<mount>/<path>?field=<field>",
	EnvVars: []string{"ASSERTION_PRIVATE_KEY"},
}
var VerifyAssertionsFlag = &cli.BoolFlag{
	Name:    "verify-assertions",
	Value:   false,
	Usage:   "verify ZTDF assertions on decryption",
	EnvVars: []string{"VERIFY_ASSERTIONS"},
}
var VerificationKeyFlag = &cli.StringFlag{
	Name:    "verification-key",
	Usage:   "path to the PEM certificate or public key assertions are verified with",
	EnvVars: []string{"ASSERTION_VERIFICATION_KEY"},
}
var PullSizeFlag = &cli.IntFlag{
	Name:    "pull-size",
	Value:   config.DefaultPullSize,
	Usage:   "number of items converted per batch",
	EnvVars: []string{"PULL_SIZE"},
}

var OperatorFlags = []cli.Flag{
	PlatformEndpointFlag,
	ClientIDFlag,
	ClientSecretFlag,
	PlaintextFlag,
	TrustStoreFlag,
	KasURLFlag,
	SignAssertionsFlag,
	PrivateKeyFlag,
	VerifyAssertionsFlag,
	VerificationKeyFlag,
	PullSizeFlag,
}

// OperatorConfig reads OperatorFlags into a validated config.Operator.
func OperatorConfig(cCtx *cli.Context) (config.Operator, error) {
	o := config.Operator{
		Platform: interfaces.PlatformSettings{
			Endpoint:      cCtx.String(PlatformEndpointFlag.Name),
			ClientID:      cCtx.String(ClientIDFlag.Name),
			ClientSecret:  cCtx.String(ClientSecretFlag.Name),
			UsePlaintext:  cCtx.Bool(PlaintextFlag.Name),
			TrustStoreRef: cCtx.String(TrustStoreFlag.Name),
		},
		DefaultKASEndpoint:  cCtx.String(KasURLFlag.Name),
		SignAssertions:      cCtx.Bool(SignAssertionsFlag.Name),
		PrivateKeyURI:       cCtx.String(PrivateKeyFlag.Name),
		VerifyAssertions:    cCtx.Bool(VerifyAssertionsFlag.Name),
		VerificationKeyPath: cCtx.String(VerificationKeyFlag.Name),
		PullSize:            cCtx.Int(PullSizeFlag.Name),
	}
	return o, o.Validate()
}
