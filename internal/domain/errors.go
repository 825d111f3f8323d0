package domain

import "errors"

var (
	// ErrNotFound — запись отсутствует. Валидный исход чтения, не сбой
	// хранилища.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict — токен версии устарел: запись изменил другой
	// писатель. Вызывающий обязан перечитать запись и повторить мутацию.
	ErrVersionConflict = errors.New("version conflict")
)
