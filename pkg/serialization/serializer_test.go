package serialization

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/flowgraph/mpcflow/internal/core/plan"
)

func samplePlan() plan.ExportJSON {
	return plan.ExportJSON{
		JobID:               "job_1700000000000_abc1234",
		Name:                "joint stats",
		CreateParticipantID: "ent_001",
		ParticipantList: []plan.Participant{
			{ParticipantID: "ent_001", EntityName: "Bank A"},
			{ParticipantID: "ent_002", EntityName: "Bank B"},
		},
		TaskList: []plan.Task{{
			Kind:           "compute",
			TaskID:         "t1",
			Name:           "PSI",
			IsFinalTask:    true,
			ComputeType:    plan.ComputePSI,
			Implementation: "SOFTWARE_CRYPTO",
			DataProviderList: []plan.DataProvider{{
				ParticipantID: "ent_001",
				EntityName:    "Bank A",
				DatasetList: []plan.DatasetItem{{
					Dataset:         "customers",
					ColumnNameList:  []string{"id"},
					ColumnAliasList: []string{"id"},
					CustomParam:     map[string]interface{}{},
				}},
			}},
			ParticipantList: []plan.Participant{{ParticipantID: "ent_001", EntityName: "Bank A"}},
		}},
	}
}

func TestJSONCodec(t *testing.T) {
	codec := NewJSONCodec()
	p := samplePlan()

	data, err := codec.Encode(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"jobId":"job_1700000000000_abc1234"`)

	var decoded plan.ExportJSON
	require.NoError(t, codec.Decode(data, &decoded))
	assert.Equal(t, p, decoded)
	assert.Equal(t, "json", codec.Name())
}

func TestIndentedJSONCodec(t *testing.T) {
	data, err := NewIndentedJSONCodec().Encode(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(data))
}

func TestMsgPackCodec(t *testing.T) {
	codec := NewMsgPackCodec()
	p := samplePlan()

	data, err := codec.Encode(p)
	require.NoError(t, err)

	var decoded plan.ExportJSON
	require.NoError(t, codec.Decode(data, &decoded))
	assert.Equal(t, p.JobID, decoded.JobID)
	assert.Equal(t, p.ParticipantList, decoded.ParticipantList)
	require.Len(t, decoded.TaskList, 1)
	assert.Equal(t, plan.ComputePSI, decoded.TaskList[0].ComputeType)
	assert.Equal(t, "msgpack", codec.Name())

	t.Run("keys follow json tags", func(t *testing.T) {
		var generic map[string]interface{}
		require.NoError(t, msgpack.Unmarshal(data, &generic))
		assert.Contains(t, generic, "jobId")
		assert.Contains(t, generic, "taskList")
		assert.NotContains(t, generic, "JobID")
	})
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name string
		want string
		err  bool
	}{
		{"", "json", false},
		{"json", "json", false},
		{"MsgPack", "msgpack", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CodecByName(tt.name)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnknownCodec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Name())
		})
	}
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	c, err = ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, c)

	_, err = ParseCompression("lz4")
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestSerializationConfig_Validate(t *testing.T) {
	assert.NoError(t, SerializationConfig{}.Validate())
	assert.NoError(t, SerializationConfig{Compression: CompressionGzip, EncryptKey: make([]byte, 32)}.Validate())
	assert.ErrorIs(t, SerializationConfig{EncryptKey: []byte("short")}.Validate(), ErrInvalidKey)
	assert.ErrorIs(t, SerializationConfig{Compression: "brotli"}.Validate(), ErrUnknownCompression)
}

func TestSerializer_BasicSerialization(t *testing.T) {
	serializer := NewSerializer(SerializationConfig{
		Codec:       NewJSONCodec(),
		Compression: CompressionNone,
	})
	assert.Equal(t, "json", serializer.Codec())

	p := samplePlan()
	data, err := serializer.Serialize(p)
	require.NoError(t, err)

	var deserialized plan.ExportJSON
	require.NoError(t, serializer.Deserialize(data, &deserialized))
	assert.Equal(t, p, deserialized)
}

func TestSerializer_DefaultCodec(t *testing.T) {
	assert.Equal(t, "json", NewSerializer(SerializationConfig{}).Codec())
}

func TestSerializer_WithCompression(t *testing.T) {
	tests := []struct {
		name        string
		compression CompressionType
	}{
		{"no compression", CompressionNone},
		{"gzip compression", CompressionGzip},
		{"zstd compression", CompressionZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serializer := NewSerializer(SerializationConfig{
				Codec:       NewMsgPackCodec(),
				Compression: tt.compression,
			})

			p := samplePlan()
			data, err := serializer.Serialize(p)
			require.NoError(t, err)

			var deserialized plan.ExportJSON
			require.NoError(t, serializer.Deserialize(data, &deserialized))
			assert.Equal(t, p.JobID, deserialized.JobID)
			assert.Len(t, deserialized.TaskList, 1)
		})
	}
}

func TestSerializer_WithEncryption(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	serializer := NewSerializer(SerializationConfig{
		Codec:      NewJSONCodec(),
		EncryptKey: key,
	})

	p := samplePlan()
	data, err := serializer.Serialize(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ent_001")

	var deserialized plan.ExportJSON
	require.NoError(t, serializer.Deserialize(data, &deserialized))
	assert.Equal(t, p, deserialized)
}

func TestSerializer_CompressionAndEncryption(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	serializer := NewSerializer(SerializationConfig{
		Codec:       NewMsgPackCodec(),
		Compression: CompressionZstd,
		EncryptKey:  key,
	})

	p := samplePlan()
	data, err := serializer.Serialize(p)
	require.NoError(t, err)

	var deserialized plan.ExportJSON
	require.NoError(t, serializer.Deserialize(data, &deserialized))
	assert.Equal(t, p.ParticipantList, deserialized.ParticipantList)
}

func TestDefaultSerializer(t *testing.T) {
	serializer := DefaultSerializer()
	assert.Equal(t, "msgpack", serializer.Codec())

	p := samplePlan()
	data, err := serializer.Serialize(p)
	require.NoError(t, err)

	var deserialized plan.ExportJSON
	require.NoError(t, serializer.Deserialize(data, &deserialized))
	assert.Equal(t, p.JobID, deserialized.JobID)
}

func TestSerializer_ErrorHandling(t *testing.T) {
	t.Run("invalid encryption key size", func(t *testing.T) {
		invalidSerializer := NewSerializer(SerializationConfig{
			Codec:      NewJSONCodec(),
			EncryptKey: []byte("short"),
		})

		_, err := invalidSerializer.Serialize("test")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "encryption failed")
	})

	t.Run("corrupted encrypted data", func(t *testing.T) {
		key := make([]byte, 32)
		_, err := rand.Read(key)
		require.NoError(t, err)

		encryptedSerializer := NewSerializer(SerializationConfig{
			Codec:      NewJSONCodec(),
			EncryptKey: key,
		})

		var result interface{}
		err = encryptedSerializer.Deserialize([]byte("corrupted encrypted data"), &result)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "decryption failed")
	})

	t.Run("corrupted compressed data", func(t *testing.T) {
		s := NewSerializer(SerializationConfig{Codec: NewJSONCodec(), Compression: CompressionGzip})
		var result interface{}
		err := s.Deserialize([]byte("not gzip"), &result)
		assert.Contains(t, err.Error(), "decompression failed")
	})
}

func BenchmarkSerializer_JSON(b *testing.B) {
	serializer := NewSerializer(SerializationConfig{Codec: NewJSONCodec()})
	p := samplePlan()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := serializer.Serialize(p)
		var deserialized plan.ExportJSON
		_ = serializer.Deserialize(data, &deserialized)
	}
}

func BenchmarkSerializer_MsgPackZstd(b *testing.B) {
	serializer := DefaultSerializer()
	p := samplePlan()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := serializer.Serialize(p)
		var deserialized plan.ExportJSON
		_ = serializer.Deserialize(data, &deserialized)
	}
}
