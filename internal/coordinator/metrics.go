package coordinator

import "expvar"

var (
	metricConnectionsActive = expvar.NewInt("arena_connections_active")
	metricAuthTotal         = expvar.NewInt("arena_auth_total")
	metricAuthErrors        = expvar.NewInt("arena_auth_errors_total")

	metricQueueJoinTotal = expvar.NewInt("arena_queue_join_total")
	metricMatchesTotal   = expvar.NewInt("arena_matches_total")
	metricBotMatches     = expvar.NewInt("arena_bot_matches_total")
	metricPairRaceLost   = expvar.NewInt("arena_pair_race_lost_total")

	metricGamesStarted   = expvar.NewInt("arena_games_started_total")
	metricGamesFinished  = expvar.NewInt("arena_games_finished_total")
	metricGamesExpired   = expvar.NewInt("arena_games_expired_total")
	metricGamesAbandoned = expvar.NewInt("arena_games_abandoned_total")
	metricMovesTotal     = expvar.NewInt("arena_moves_total")
	metricAutoMovesTotal = expvar.NewInt("arena_auto_moves_total")

	metricStartSends     = expvar.NewInt("arena_start_sends_total")
	metricStartRetries   = expvar.NewInt("arena_start_retries_total")
	metricStartDropped   = expvar.NewInt("arena_start_dropped_total")
	metricStartCoalesced = expvar.NewInt("arena_start_coalesced_total")

	metricReconnects    = expvar.NewInt("arena_reconnects_total")
	metricGraceExpiries = expvar.NewInt("arena_grace_expiries_total")
)
