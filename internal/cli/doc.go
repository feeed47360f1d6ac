// Package cli реализует инструмент командной строки Synapse.
//
// # Обзор
//
// CLI работает в двух режимах:
//   - Через HTTP API: управление сохранёнными flows и runs
//   - Локально: проверка и выполнение flow из файла без API и БД
//
// Клиентская часть не импортирует internal/api: DTO продублированы
// в client.go, общими остаются только типы domain.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Synapse API. Инкапсулирует запросы, разбор
// конвертов (data, list, error) и чтение NDJSON-потоков выполнения.
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) и строки прогресса — по умолчанию
//   - JSON — с флагом --json; потоки выводятся как NDJSON
//
// Данные выводятся в stdout, прогресс и сообщения — в stderr.
// Это позволяет использовать pipe: synapse flow list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow: list, create, show, update, delete, validate, order, export, execute
//   - run: list, start, show, retry, watch
//   - validate, order, exec: локальная работа с файлом flow (JSON или YAML)
//
// Группы создаются фабричными функциями (NewFlowCmd и т.д.),
// принимающими clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
