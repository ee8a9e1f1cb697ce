// Package blob define el contrato mínimo que el purgador necesita del
// almacenamiento externo de imágenes: borrar por clave.
//
// Backends disponibles:
//   - s3: bucket S3 (o compatible) vía aws-sdk-go-v2
//   - fs: archivos bajo un directorio raíz
//   - memory: en proceso, para tests y desarrollo local
//
// Las referencias guardadas en la base pueden ser URLs completas (así las
// guarda el flujo de upload) o claves desnudas; cada backend resuelve la
// clave real con KeyFromRef.
package blob

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrNotFound indica que la clave no existe en el backend.
	ErrNotFound = errors.New("blob: not found")
	// ErrInvalidKey indica una referencia vacía o imposible de resolver.
	ErrInvalidKey = errors.New("blob: invalid key")
)

// Store borra objetos por clave.
type Store interface {
	// Name identifica el backend ("s3", "fs", "memory").
	Name() string
	// Delete borra el objeto. Retorna ErrNotFound si no existe.
	Delete(ctx context.Context, key string) error
}

// IsNotFound reporta si err (o algún error envuelto) es ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// KeyOptions describe cómo convertir una referencia almacenada en clave.
type KeyOptions struct {
	// BaseURL es la URL pública del bucket; si la referencia empieza con
	// ella se recorta.
	BaseURL string
	// Bucket se recorta del path cuando PathStyle es true.
	Bucket    string
	PathStyle bool
	// Prefix se antepone a claves desnudas (no URLs).
	Prefix string
}

// KeyFromRef resuelve la clave de objeto a partir de una referencia
// guardada en la base.
func KeyFromRef(ref string, o KeyOptions) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidKey
	}

	if o.BaseURL != "" {
		base := strings.TrimSuffix(o.BaseURL, "/") + "/"
		if strings.HasPrefix(ref, base) {
			return cleanKey(strings.TrimPrefix(ref, base))
		}
	}

	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		key := strings.TrimPrefix(u.Path, "/")
		if o.PathStyle && o.Bucket != "" {
			key = strings.TrimPrefix(key, o.Bucket+"/")
		}
		return cleanKey(key)
	}

	key := strings.TrimPrefix(ref, "/")
	if o.Prefix != "" && !strings.HasPrefix(key, o.Prefix) {
		key = strings.TrimSuffix(o.Prefix, "/") + "/" + key
	}
	return cleanKey(key)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", ErrInvalidKey
	}
	return key, nil
}
