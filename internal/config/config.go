package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type LogConfig struct {
	Level    string
	Format   string
	Output   string
	FilePath string
}

type SolanaConfig struct {
	RPCURL      string
	Commitment  rpc.CommitmentType
	PrivateKey  string
	KeypairPath string
}

type CatalogConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
}

type ProgramConfig struct {
	XeenonProgramID    solana.PublicKey
	MayflowerProgramID solana.PublicKey
	CrediezMint        solana.PublicKey
	CrediezDecimals    uint8
	Tenant             solana.PublicKey
}

type TxConfig struct {
	// PriorityFeeTier is empty when priority fees are disabled.
	PriorityFeeTier     string
	PriorityFeeDisabled bool
	DefaultPriorityFee  uint64
	PriorityFeeTimeout  time.Duration
	PriorityFeeEndpoint string
	ComputeUnitLimit    uint32
	SkipPreflight       bool
	SubmitRetries       int
	NodeMaxRetries      *uint
	ExplorerURL         string
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
}

type ServerConfig struct {
	ListenAddr     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type ToolServerConfig struct {
	Solana   SolanaConfig
	Catalog  CatalogConfig
	Programs ProgramConfig
	Tx       TxConfig
	Server   ServerConfig
	Log      LogConfig
}

const (
	defaultRPCURL      = "https://api.mainnet-beta.solana.com"
	defaultCatalogURL  = "https://main.public-api.xeenon.xyz"
	defaultCatalogKey  = "xeen_"
	defaultExplorerURL = "https://solscan.io/tx/%s"
	defaultKeypairPath = "~/.config/solana/id.json"
)

// LoadToolServerConfig reads the tool server settings from the environment,
// falling back to the phase config file.
func LoadToolServerConfig() (ToolServerConfig, error) {
	src, err := runtimeSource()
	if err != nil {
		return ToolServerConfig{}, err
	}
	return loadToolServerConfig(src)
}

func loadToolServerConfig(src *source) (ToolServerConfig, error) {
	var cfg ToolServerConfig
	var err error

	cfg.Solana.RPCURL = src.stringOr("SOLANA_RPC_URL", src.stringOr("RPC_URL", defaultRPCURL))
	if cfg.Solana.Commitment, err = src.commitment("SOLANA_COMMITMENT", rpc.CommitmentConfirmed); err != nil {
		return ToolServerConfig{}, err
	}
	cfg.Solana.PrivateKey = src.value("SOLANA_PRIVATE_KEY")
	if cfg.Solana.PrivateKey == "" {
		if cfg.Solana.KeypairPath, err = expandHomePath(src.stringOr("SOLANA_KEYPAIR_PATH", defaultKeypairPath)); err != nil {
			return ToolServerConfig{}, fmt.Errorf("expand keypair path: %w", err)
		}
	}

	cfg.Catalog.BaseURL = src.stringOr("XEENON_API_URL", defaultCatalogURL)
	cfg.Catalog.APIKey = src.stringOr("XEENON_API_KEY", defaultCatalogKey)
	if cfg.Catalog.Timeout, err = src.duration("XEENON_API_TIMEOUT", 15*time.Second); err != nil {
		return ToolServerConfig{}, err
	}
	if cfg.Catalog.RequestsPerMinute, err = src.positiveInt("XEENON_API_RATE_LIMIT", 120); err != nil {
		return ToolServerConfig{}, err
	}

	if cfg.Programs, err = loadProgramConfig(src); err != nil {
		return ToolServerConfig{}, err
	}
	if cfg.Tx, err = loadTxConfig(src, cfg.Solana.RPCURL); err != nil {
		return ToolServerConfig{}, err
	}
	if cfg.Server, err = loadServerConfig(src); err != nil {
		return ToolServerConfig{}, err
	}
	cfg.Log = buildLogConfig(src, "TOOL_SERVER", "tools-server")
	return cfg, nil
}

func loadProgramConfig(src *source) (ProgramConfig, error) {
	var out ProgramConfig
	var missing []string
	for _, field := range []struct {
		key string
		dst *solana.PublicKey
	}{
		{key: "XEENON_PROGRAM_ID", dst: &out.XeenonProgramID},
		{key: "MAYFLOWER_PROGRAM_ID", dst: &out.MayflowerProgramID},
		{key: "CREDIEZ_ADDRESS", dst: &out.CrediezMint},
		{key: "TENANT_ADDRESS", dst: &out.Tenant},
	} {
		pk, err := src.pubkey(field.key, solana.PublicKey{})
		if err != nil {
			return ProgramConfig{}, err
		}
		if pk.IsZero() {
			missing = append(missing, field.key)
			continue
		}
		*field.dst = pk
	}
	if len(missing) > 0 {
		return ProgramConfig{}, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	decimals, err := src.uint64Or("CREDIEZ_DECIMALS", 6)
	if err != nil {
		return ProgramConfig{}, err
	}
	if decimals > 18 {
		return ProgramConfig{}, errors.New("invalid CREDIEZ_DECIMALS: must be <= 18")
	}
	out.CrediezDecimals = uint8(decimals)
	return out, nil
}

func loadTxConfig(src *source, rpcURL string) (TxConfig, error) {
	var out TxConfig
	var err error

	tier := src.stringOr("PRIORITY_FEE_TIER", "high")
	if strings.EqualFold(tier, "none") || strings.EqualFold(tier, "off") {
		out.PriorityFeeDisabled = true
	} else {
		out.PriorityFeeTier = tier
	}
	if out.DefaultPriorityFee, err = src.uint64Or("PRIORITY_FEE_DEFAULT_MICRO_LAMPORTS", 1000); err != nil {
		return TxConfig{}, err
	}
	if out.PriorityFeeTimeout, err = src.duration("PRIORITY_FEE_TIMEOUT", 5*time.Second); err != nil {
		return TxConfig{}, err
	}
	out.PriorityFeeEndpoint = src.stringOr("PRIORITY_FEE_RPC_URL", rpcURL)
	if out.ComputeUnitLimit, err = src.uint32Or("COMPUTE_UNIT_LIMIT", 0); err != nil {
		return TxConfig{}, err
	}
	if out.SkipPreflight, err = src.boolOr("TX_SKIP_PREFLIGHT", false); err != nil {
		return TxConfig{}, err
	}
	retries, err := src.uint64Or("TX_SUBMIT_RETRIES", 3)
	if err != nil {
		return TxConfig{}, err
	}
	out.SubmitRetries = int(retries)

	nodeRetries, err := src.optionalUint("TX_NODE_MAX_RETRIES")
	if err != nil {
		return TxConfig{}, err
	}
	if nodeRetries == nil {
		three := uint(3)
		nodeRetries = &three
	}
	out.NodeMaxRetries = nodeRetries

	out.ExplorerURL = src.stringOr("TX_EXPLORER_URL", defaultExplorerURL)
	if !strings.Contains(out.ExplorerURL, "%s") {
		out.ExplorerURL = strings.TrimRight(out.ExplorerURL, "/") + "/%s"
	}
	if out.ConfirmTimeout, err = src.duration("TX_CONFIRM_TIMEOUT", 30*time.Second); err != nil {
		return TxConfig{}, err
	}
	if out.ConfirmPollInterval, err = src.duration("TX_CONFIRM_POLL_INTERVAL", 700*time.Millisecond); err != nil {
		return TxConfig{}, err
	}
	return out, nil
}

func loadServerConfig(src *source) (ServerConfig, error) {
	var out ServerConfig
	var err error

	// Every call signs with the server wallet; stay on loopback unless told otherwise.
	out.ListenAddr = src.stringOr("TOOL_SERVER_LISTEN_ADDR", "127.0.0.1:8080")
	if out.ReadTimeout, err = src.duration("TOOL_SERVER_READ_TIMEOUT", 10*time.Second); err != nil {
		return ServerConfig{}, err
	}
	// Long enough for a transactionStatus call that waits for confirmation.
	if out.WriteTimeout, err = src.duration("TOOL_SERVER_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return ServerConfig{}, err
	}
	if out.IdleTimeout, err = src.duration("TOOL_SERVER_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return ServerConfig{}, err
	}
	out.AllowedOrigins = parseCSV(src.value("TOOL_SERVER_ALLOWED_ORIGINS"), nil)
	return out, nil
}

func buildLogConfig(src *source, prefix string, serviceName string) LogConfig {
	return LogConfig{
		Level:    src.stringOr(prefix+"_LOG_LEVEL", src.stringOr("LOG_LEVEL", "info")),
		Format:   src.stringOr(prefix+"_LOG_FORMAT", src.stringOr("LOG_FORMAT", "text")),
		Output:   src.stringOr(prefix+"_LOG_OUTPUT", src.stringOr("LOG_OUTPUT", "stderr")),
		FilePath: src.stringOr(prefix+"_LOG_FILE", src.stringOr("LOG_FILE", filepath.Join(".docker", serviceName, serviceName+".log"))),
	}
}
