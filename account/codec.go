package account

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/marketsquare/authcore/lockout"
)

const (
	accountRecordVersionV1    = 1
	credentialRecordVersionV1 = 1

	flagActive   = 1 << 0
	flagVerified = 1 << 1
)

var errCorruptRecord = errors.New("corrupt account record")

var roleCodes = map[Role]byte{
	RoleCustomer: 1,
	RoleSeller:   2,
	RoleAdmin:    3,
}

var providerCodes = map[Provider]byte{
	ProviderLocal:    1,
	ProviderGoogle:   2,
	ProviderFacebook: 3,
}

func roleFromCode(code byte) (Role, bool) {
	for role, c := range roleCodes {
		if c == code {
			return role, true
		}
	}
	return "", false
}

func providerFromCode(code byte) (Provider, bool) {
	for provider, c := range providerCodes {
		if c == code {
			return provider, true
		}
	}
	return "", false
}

func encodeAccount(acct *Account) ([]byte, error) {
	roleCode, ok := roleCodes[acct.Role]
	if !ok {
		return nil, errors.New("unknown account role")
	}

	var flags byte
	if acct.Active {
		flags |= flagActive
	}
	if acct.Verified {
		flags |= flagVerified
	}

	var lockedUntil int64
	if !acct.Lockout.LockedUntil.IsZero() {
		lockedUntil = acct.Lockout.LockedUntil.Unix()
	}

	var buf bytes.Buffer
	buf.WriteByte(accountRecordVersionV1)
	buf.WriteByte(roleCode)
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, uint16(acct.Lockout.FailedAttempts)); err != nil {
		return nil, err
	}
	for _, v := range []int64{lockedUntil, acct.CreatedAt.Unix(), acct.UpdatedAt.Unix()} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	for _, s := range []string{acct.ID, acct.Email} {
		if err := writeString(&buf, s); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeAccount(data []byte) (*Account, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != accountRecordVersionV1 {
		return nil, errCorruptRecord
	}

	roleCode, err := reader.ReadByte()
	if err != nil {
		return nil, errCorruptRecord
	}
	role, ok := roleFromCode(roleCode)
	if !ok {
		return nil, errCorruptRecord
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, errCorruptRecord
	}

	var failedAttempts uint16
	if err := binary.Read(reader, binary.BigEndian, &failedAttempts); err != nil {
		return nil, errCorruptRecord
	}

	var lockedUntil, createdAt, updatedAt int64
	for _, dst := range []*int64{&lockedUntil, &createdAt, &updatedAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, errCorruptRecord
		}
	}

	id, err := readString(reader)
	if err != nil {
		return nil, errCorruptRecord
	}
	email, err := readString(reader)
	if err != nil {
		return nil, errCorruptRecord
	}

	acct := &Account{
		ID:        id,
		Email:     email,
		Role:      role,
		Active:    flags&flagActive != 0,
		Verified:  flags&flagVerified != 0,
		Lockout:   lockout.State{FailedAttempts: int(failedAttempts)},
		CreatedAt: time.Unix(createdAt, 0),
		UpdatedAt: time.Unix(updatedAt, 0),
	}
	if lockedUntil != 0 {
		acct.Lockout.LockedUntil = time.Unix(lockedUntil, 0)
	}

	return acct, nil
}

func encodeCredential(cred *Credential) ([]byte, error) {
	providerCode, ok := providerCodes[cred.Provider]
	if !ok {
		return nil, errors.New("unknown credential provider")
	}

	var buf bytes.Buffer
	buf.WriteByte(credentialRecordVersionV1)
	buf.WriteByte(providerCode)

	if err := binary.Write(&buf, binary.BigEndian, cred.CreatedAt.Unix()); err != nil {
		return nil, err
	}

	for _, s := range []string{cred.AccountID, cred.PasswordHash, cred.SubjectID} {
		if err := writeString(&buf, s); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeCredential(data []byte) (*Credential, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != credentialRecordVersionV1 {
		return nil, errCorruptRecord
	}

	providerCode, err := reader.ReadByte()
	if err != nil {
		return nil, errCorruptRecord
	}
	provider, ok := providerFromCode(providerCode)
	if !ok {
		return nil, errCorruptRecord
	}

	var createdAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, errCorruptRecord
	}

	accountID, err := readString(reader)
	if err != nil {
		return nil, errCorruptRecord
	}
	passwordHash, err := readString(reader)
	if err != nil {
		return nil, errCorruptRecord
	}
	subjectID, err := readString(reader)
	if err != nil {
		return nil, errCorruptRecord
	}

	return &Credential{
		AccountID:    accountID,
		Provider:     provider,
		PasswordHash: passwordHash,
		SubjectID:    subjectID,
		CreatedAt:    time.Unix(createdAt, 0),
	}, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("record string too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}

	return string(raw), nil
}
