// Package engine содержит чистую логику графа flow.
//
// Включает:
//   - dag.go       — топологический порядок (алгоритм Кана) и индекс графа
//   - template.go  — подстановка {{Name}} из результатов upstream узлов
//   - results.go   — карта результатов run
//   - validate.go  — статическая валидация графа перед запуском
//   - selection.go — согласование выбора вложений prompt-узлов с рёбрами
//
// Пакет не выполняет I/O и не хранит состояния между вызовами.
package engine
