// Package battleship 是一個兩人即時對戰的海戰棋（Battleship）伺服器。
//
// 玩家透過 WebSocket 連線後被分配到房間的座位 0 或 1，
// 在各自的棋盤上佈署艦隊，輪流攻擊對手的棋盤，直到一方全滅。
//
// # 對局流程
//
//	連線 → player_joined（座位）→ ready（兩人到齊）
//	     → place_ship / auto_place_request / reset_placement → grid_update
//	     → confirm_placement ×2 → battle_start + turn_start
//	     → attack → attack_result（命中、擊沉保留回合；未命中交換回合）
//	     → game_over → rematch_request ×2 → rematch_restart
//
// # 架構
//
//   - internal/game：棋盤、艦艇、放置規則、攻擊判定、回合，純記憶體、不加鎖
//   - internal：房間、房間註冊表、Session 分派、限流、WebSocket、HTTP 查詢、對局事件
//   - cmd/server：組裝與優雅關閉
//
// 每個房間一把鎖，房間內所有修改串行化；訊息在鎖內收集、鎖外投遞，
// 慢客戶端不會拖住對手。
//
// # 端點
//
//   - /ws/game/{room_id}：加入（或創建）指定房間
//   - /ws/game：自動配對到最早創建且未滿的房間
//   - GET /api/v1/rooms、GET /api/v1/rooms/{room_id}：房間狀態（不含棋盤）
//   - GET /health、GET /stats
//
// # 配置
//
// 預設值 → config.yaml → 環境變數（BATTLESHIP_HOST、BATTLESHIP_PORT、BATTLESHIP_NATS_URL）
// → 命令行參數（-port、-log-level、-log-format）。
//
// 配置 nats.url 後，玩家加入 / 離開、開戰、對局結束、重賽等事件會發布到
// {subject_prefix}.{event} 供下游訂閱。
package battleship
