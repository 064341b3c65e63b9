package httptransport

import "expvar"

var (
	metricQueueJoinTotal  = expvar.NewInt("http_queue_join_total")
	metricQueueJoinErrors = expvar.NewInt("http_queue_join_errors_total")

	metricRoomActionTotal  = expvar.NewInt("http_room_action_total")
	metricRoomActionErrors = expvar.NewInt("http_room_action_errors_total")

	metricMoveSubmitTotal  = expvar.NewInt("http_move_submit_total")
	metricMoveSubmitErrors = expvar.NewInt("http_move_submit_errors_total")
)
