// Package robokassa реализует протокол платёжного шлюза Robokassa:
// построение платёжной ссылки, генерацию номеров счетов и проверку
// подписи серверного уведомления (ResultURL).
//
// Формулы подписи фиксированы документацией шлюза и должны совпадать
// побайтово:
//
//	исходящая ссылка: md5(MerchantLogin:OutSum:InvId:Password1[:Shp_k=v...])
//	уведомление:      md5(OutSum:InvId:Password2[:Shp_k=v...])
//
// Shp_-параметры участвуют в подписи в лексикографическом порядке ключей,
// сумма всегда форматируется с двумя знаками после запятой.
package robokassa

import (
	"crypto/md5"
	"crypto/subtle"
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Credentials учётные данные мерчанта для одного канала.
type Credentials struct {
	MerchantLogin string
	Password1     string // подпись исходящей ссылки
	Password2     string // подпись серверного уведомления
}

// FormatAmount приводит сумму к формату шлюза: ровно два знака после запятой.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// NewInvoiceID генерирует уникальный целочисленный номер счёта.
// Robokassa требует целое в диапазоне 1..2^63-1; микросекундная метка
// времени плюс трёхзначная случайная добавка исключают коллизии при
// одновременной выдаче ссылок.
func NewInvoiceID() int64 {
	return time.Now().UnixMicro() + int64(rand.Intn(900)+100)
}

// shpString собирает Shp_-параметры в каноническую часть подписи:
// "k1=v1:k2=v2" с ключами в лексикографическом порядке.
func shpString(shp map[string]string) string {
	if len(shp) == 0 {
		return ""
	}
	keys := make([]string, 0, len(shp))
	for k := range shp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+shp[k])
	}
	return strings.Join(parts, ":")
}

func md5hex(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// LinkSignature подпись исходящей платёжной ссылки.
func LinkSignature(creds Credentials, outSum string, invoiceID int64, shp map[string]string) string {
	base := fmt.Sprintf("%s:%s:%d:%s", creds.MerchantLogin, outSum, invoiceID, creds.Password1)
	if s := shpString(shp); s != "" {
		base += ":" + s
	}
	return md5hex(base)
}

// ResultSignature подпись серверного уведомления для заданных параметров.
func ResultSignature(outSum, invoiceID, password2 string, shp map[string]string) string {
	base := fmt.Sprintf("%s:%s:%s", outSum, invoiceID, password2)
	if s := shpString(shp); s != "" {
		base += ":" + s
	}
	return md5hex(base)
}

// VerifyResultSignature сверяет подпись уведомления. Сравнение
// регистронезависимое: шлюз может прислать подпись в верхнем регистре.
func VerifyResultSignature(outSum, invoiceID, signature, password2 string, shp map[string]string) bool {
	expected := ResultSignature(outSum, invoiceID, password2, shp)
	got := strings.ToLower(signature)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// PaymentURL строит платёжную ссылку шлюза для заданного счёта.
// Параметры Shp_ добавляются и в URL, и в подпись.
func PaymentURL(baseURL string, creds Credentials, amount float64, description string, invoiceID int64, shp map[string]string, testMode bool) string {
	outSum := FormatAmount(amount)

	params := url.Values{}
	params.Set("MerchantLogin", creds.MerchantLogin)
	params.Set("OutSum", outSum)
	params.Set("InvId", fmt.Sprintf("%d", invoiceID))
	params.Set("Description", description)
	for k, v := range shp {
		params.Set(k, v)
	}
	params.Set("SignatureValue", LinkSignature(creds, outSum, invoiceID, shp))
	if testMode {
		params.Set("IsTest", "1")
	}

	return baseURL + "?" + params.Encode()
}
