package terrain

// periodicTimer — накопительный интервальный таймер, продвигаемый
// внешним циклом обновления (в миллисекундах)
type periodicTimer struct {
	interval int64
	current  int64
}

// SetInterval задаёт период срабатывания
func (t *periodicTimer) SetInterval(intervalMs int64) {
	t.interval = intervalMs
}

// SetCurrent задаёт накопленное время (для рандомизации первой фазы)
func (t *periodicTimer) SetCurrent(currentMs int64) {
	t.current = currentMs
}

// Update добавляет прошедшее время
func (t *periodicTimer) Update(diffMs int64) {
	t.current += diffMs
}

// Passed сообщает, истёк ли интервал
func (t *periodicTimer) Passed() bool {
	return t.current >= t.interval
}

// Reset переносит остаток на следующий период
func (t *periodicTimer) Reset() {
	t.current -= t.interval
	if t.current < 0 {
		t.current = 0
	}
}
