// Package httpbackend — capability.Provider поверх HTTP шлюза к моделям.
//
// Запросы и ответы — JSON; генерация потоком и загрузка модели —
// NDJSON, по одному объекту на строку.
package httpbackend
