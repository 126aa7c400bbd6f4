// Package gateway реализует WebSocket-клиент шлюза Adapt (Harmony).
// Клиент открывает соединение, отправляет identify, по hello запускает
// heartbeat (ping раз в 15s), разбирает кадры активным кодеком и отдаёт их
// наверх через колбэки, а при обрыве сам переподключается.
//
// События (колбэки поля структуры):
//   - OnStateChange, OnReady, OnDispatch, OnClose, OnError.
//
// Устойчивость:
//   - Всё состояние соединения принадлежит одной горутине (run loop);
//     кадры обрабатываются строго в порядке прихода.
//   - Запись в сокет сериализована (мьютекс + write-deadline).
//   - Если pong не пришёл MaxMissedPongs тиков подряд, соединение
//     считается мёртвым и закрывается с кодом 4000.
//   - Реконнект с экспоненциальной задержкой: 5s, 10s, 20s ... до 60s,
//     сброс после ready. Коды <= 1000 и 4004 терминальные.
//
// Пример:
//
//	gw := gateway.New(gateway.Config{URL: "https://harmony.adapt.chat", Token: token})
//	gw.OnDispatch = func(env *codec.Envelope) { fmt.Println(env.Event) }
//	if err := gw.Connect(ctx); err != nil { log.Fatal(err) }
//	defer gw.Close()
//
//	_ = gw.Send("update_presence", map[string]string{"status": "dnd"})
package gateway
