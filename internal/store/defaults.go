package store

import "tgstate/internal/domain"

const defaultPort = 443

var (
	productionShards = []string{
		"149.154.175.50",
		"149.154.167.51",
		"149.154.175.100",
		"149.154.167.91",
		"149.154.171.5",
	}
	testShards = []string{
		"149.154.175.10",
		"149.154.167.40",
		"149.154.175.117",
	}
)

// DefaultWorkingShard is the shard used first on a fresh state directory.
const DefaultWorkingShard domain.ShardID = 2

// DefaultShards returns the built-in endpoints used when no authorization
// file exists. None of them carries a key or is signed.
func DefaultShards(testMode bool) []domain.Shard {
	hosts := productionShards
	if testMode {
		hosts = testShards
	}
	out := make([]domain.Shard, len(hosts))
	for i, h := range hosts {
		out[i] = domain.Shard{ID: domain.ShardID(i + 1), Host: h, Port: defaultPort}
	}
	return out
}
