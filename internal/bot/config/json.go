package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/packsmith/internal/flagx"
	"github.com/dmitrijs2005/packsmith/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It is an intermediate DTO used only for reading JSON
// configuration files; after unmarshalling, non-zero fields are copied into
// the runtime Config struct.
type JsonConfig struct {
	BotToken         string `json:"bot_token"`
	OwnerID          int64  `json:"owner_id"`
	DatabaseDSN      string `json:"database_dsn"`
	OnlyPrivateChats *bool  `json:"only_private_chats"`

	FreeMaxStickers int `json:"free_max_stickers"`
	FreeMaxEmojis   int `json:"free_max_emojis"`
	PaidMaxItems    int `json:"paid_max_items"`

	FreePackNameMinLen int `json:"free_pack_name_min_len"`
	FreePackNameMaxLen int `json:"free_pack_name_max_len"`
	PaidPackNameMinLen int `json:"paid_pack_name_min_len"`
	PaidPackNameMaxLen int `json:"paid_pack_name_max_len"`

	PriceBPackEmoji   int `json:"price_bpack_emoji_xtr"`
	PriceBPackSticker int `json:"price_bpack_sticker_xtr"`
	PriceAPack        int `json:"price_apack_xtr"`
	PriceDuplicate    int `json:"price_duplicate_xtr"`

	BroadcastPause timex.Duration `json:"broadcast_pause"`

	BackupDir      string `json:"backup_dir"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	if c.BotToken != "" {
		config.BotToken = c.BotToken
	}
	if c.OwnerID != 0 {
		config.OwnerID = c.OwnerID
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.OnlyPrivateChats != nil {
		config.OnlyPrivateChats = *c.OnlyPrivateChats
	}

	if c.FreeMaxStickers != 0 {
		config.FreeMaxStickers = c.FreeMaxStickers
	}
	if c.FreeMaxEmojis != 0 {
		config.FreeMaxEmojis = c.FreeMaxEmojis
	}
	if c.PaidMaxItems != 0 {
		config.PaidMaxItems = c.PaidMaxItems
	}

	if c.FreePackNameMinLen != 0 {
		config.FreePackNameMinLen = c.FreePackNameMinLen
	}
	if c.FreePackNameMaxLen != 0 {
		config.FreePackNameMaxLen = c.FreePackNameMaxLen
	}
	if c.PaidPackNameMinLen != 0 {
		config.PaidPackNameMinLen = c.PaidPackNameMinLen
	}
	if c.PaidPackNameMaxLen != 0 {
		config.PaidPackNameMaxLen = c.PaidPackNameMaxLen
	}

	if c.PriceBPackEmoji != 0 {
		config.PriceBPackEmoji = c.PriceBPackEmoji
	}
	if c.PriceBPackSticker != 0 {
		config.PriceBPackSticker = c.PriceBPackSticker
	}
	if c.PriceAPack != 0 {
		config.PriceAPack = c.PriceAPack
	}
	if c.PriceDuplicate != 0 {
		config.PriceDuplicate = c.PriceDuplicate
	}

	if c.BroadcastPause.Duration != 0 {
		config.BroadcastPause = c.BroadcastPause
	}

	if c.BackupDir != "" {
		config.BackupDir = c.BackupDir
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
