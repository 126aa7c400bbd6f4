// Package bot — демонстрационный бот поверх pkg/adapt. Бот:
//   - логинится в Adapt и держит соединение со шлюзом (реконнекты делает SDK);
//   - отвечает на чат-команды с настраиваемым префиксом
//     (!help, !ping, !echo, !status, !uptime);
//   - пишет в лог события ready и обрывы соединения;
//   - отдаёт /metrics (Prometheus) и /healthz, если задан metrics.listen.
//
// Жизненный цикл:
//   - Загрузить конфиг через LoadConfig("conf/adaptbot.yaml"); файл с
//     умолчаниями создаётся, если его нет. Переменные ADAPT_* перекрывают файл.
//   - Собрать логгер NewLogger(cfg.Log, os.Stderr) и бота New(cfg, log).
//   - Запустить Start(ctx) и остановить Stop().
//
// Пример:
//
//	cfg, err := bot.LoadConfig("conf/adaptbot.yaml")
//	if err != nil { log.Fatal(err) }
//	logger, _ := bot.NewLogger(cfg.Log, os.Stderr)
//
//	b, err := bot.New(cfg, logger)
//	if err != nil { log.Fatal(err) }
//	if err := b.Start(ctx); err != nil { log.Fatal(err) }
//	defer b.Stop()
//	<-ctx.Done()
//
// Конфигурация:
//   - хранится в YAML (см. BotConfig): токен, префикс, кодек шлюза
//     (json|msgpack|proto), адреса сервисов, уровень и формат логов,
//     адрес http-сервера метрик. Свои сообщения бот не обрабатывает.
package bot
