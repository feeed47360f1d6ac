// Package capability описывает границу с AI backend.
//
// Provider проверяет доступность модели и создаёт Session;
// Session генерирует текст целиком или потоком дельт.
// Registry связывает capability (writer, summarizer, language-model...)
// с конкретным Provider и передаётся диспетчеру шагов при старте.
//
// Реализации:
//   - httpbackend   — клиент HTTP/NDJSON шлюза к моделям
//   - capabilitytest — программируемый fake для тестов
package capability
