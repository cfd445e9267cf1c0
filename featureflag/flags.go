package featureflag

type Flag string

const (
	FlagDisableLatticeClaims Flag = "DISABLE_LATTICE_CLAIMS"
	FlagDisableLeasing       Flag = "DISABLE_LEASING"
	FlagDisableFeedBroadcast Flag = "DISABLE_FEED_BROADCAST"
	FlagDisableRateLimit     Flag = "DISABLE_RATE_LIMIT"
)
